package waveform

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSACFile(t *testing.T, path string, tr Trace) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WriteSAC(f, tr, binary.LittleEndian))
}

func TestLister_Run(t *testing.T) {
	dir := t.TempDir()
	writeSACFile(t, filepath.Join(dir, "a.SAC"), testTrace())
	writeSACFile(t, filepath.Join(dir, "b.sac"), testTrace())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.SAC"), []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.SAC"), 0o755))

	var out bytes.Buffer
	metrics := observability.NewMetricsForTesting()
	l := NewLister(dir, ".SAC", &out, discardLogger(), metrics)

	rep := l.Run(context.Background())

	assert.Equal(t, Report{Files: 3, Read: 2, Failed: 1}, rep)
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("1 Trace(s) in Stream:")))
	assert.Contains(t, out.String(), "Error reading broken.SAC")
	assert.NotContains(t, out.String(), "notes.txt")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.WaveformFiles.WithLabelValues("read")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WaveformFiles.WithLabelValues("failed")), 0)
}

func TestLister_MissingDirectory(t *testing.T) {
	var out bytes.Buffer
	dir := filepath.Join(t.TempDir(), "absent")
	l := NewLister(dir, ".SAC", &out, discardLogger(), observability.NewMetricsForTesting())

	rep := l.Run(context.Background())

	assert.True(t, rep.Missing)
	assert.Zero(t, rep.Files)
	assert.Contains(t, out.String(), "not found")
}

func TestLister_EmptyDirectory(t *testing.T) {
	var out bytes.Buffer
	l := NewLister(t.TempDir(), ".SAC", &out, discardLogger(), observability.NewMetricsForTesting())

	rep := l.Run(context.Background())

	assert.Equal(t, Report{}, rep)
	assert.Empty(t, out.String())
}

func TestLister_ScanSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.SAC", "a.SAC", "b.SAC"} {
		writeSACFile(t, filepath.Join(dir, name), testTrace())
	}
	l := NewLister(dir, ".SAC", io.Discard, discardLogger(), observability.NewMetricsForTesting())

	paths, err := l.Scan()
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, "a.SAC", filepath.Base(paths[0]))
	assert.Equal(t, "c.SAC", filepath.Base(paths[2]))
}

func TestLister_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSACFile(t, filepath.Join(dir, "a.SAC"), testTrace())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	rep := NewLister(dir, ".SAC", &out, discardLogger(), observability.NewMetricsForTesting()).Run(ctx)

	assert.Equal(t, 1, rep.Files)
	assert.Zero(t, rep.Read)
	assert.Empty(t, out.String())
}
