package waveform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
)

// Report summarises one listing pass.
type Report struct {
	Files   int
	Read    int
	Failed  int
	Missing bool
}

// Lister prints a stream summary for every waveform file in a directory.
type Lister struct {
	dir     string
	ext     string
	out     io.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLister creates a Lister. Extensions match case-insensitively, so ".SAC"
// also picks up ".sac".
func NewLister(dir, ext string, out io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Lister {
	return &Lister{
		dir:     dir,
		ext:     ext,
		out:     out,
		logger:  logger,
		metrics: metrics,
	}
}

// Scan returns the matching file names in lexical order.
func (l *Lister) Scan() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), l.ext) {
			continue
		}
		paths = append(paths, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run reads every matching file and writes its summary. A missing directory
// and unreadable files are reported, never returned as errors.
func (l *Lister) Run(ctx context.Context) Report {
	var rep Report

	paths, err := l.Scan()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			rep.Missing = true
			l.logger.Warn("waveform folder not found", "dir", l.dir)
			fmt.Fprintf(l.out, "Waveform folder not found: %s\n", l.dir)
			return rep
		}
		l.logger.Error("scan waveform folder", "dir", l.dir, "error", err)
		return rep
	}
	rep.Files = len(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			l.logger.Info("waveform listing cancelled", "remaining", rep.Files-rep.Read-rep.Failed)
			break
		}

		st, err := ReadFile(path)
		if err != nil {
			rep.Failed++
			l.metrics.WaveformFiles.WithLabelValues("failed").Inc()
			l.logger.Warn("read waveform", "file", path, "error", err)
			fmt.Fprintf(l.out, "Error reading %s: %v\n", filepath.Base(path), err)
			continue
		}

		rep.Read++
		l.metrics.WaveformFiles.WithLabelValues("read").Inc()
		fmt.Fprintln(l.out, st.String())
	}

	l.logger.Info("waveform listing complete",
		"dir", l.dir, "files", rep.Files, "read", rep.Read, "failed", rep.Failed)
	return rep
}
