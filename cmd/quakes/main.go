// Command quakes fetches an earthquake catalog, writes it to a spreadsheet,
// draws it on a map and lists the local waveform files.
//
// Usage:
//
//	quakes              # same as "quakes run"
//	quakes run
//	quakes waveforms --dir waveforms
//	quakes validate --file output/calmex.xlsx
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-catalog-etl/internal/config"
	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "quakes",
	Short:         "Tabulate and map a seismic event catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd, waveformsCmd, validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if logger != nil {
			logger.Error("quakes failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
