package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
	"github.com/couchcryptid/quake-catalog-etl/internal/waveform"
)

var (
	waveformDir string
	waveformExt string
)

var waveformsCmd = &cobra.Command{
	Use:   "waveforms",
	Short: "Print a summary of every waveform file in a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, ext := cfg.WaveformDir, cfg.WaveformExt
		if cmd.Flags().Changed("dir") {
			dir = waveformDir
		}
		if cmd.Flags().Changed("ext") {
			ext = waveformExt
		}
		waveform.NewLister(dir, ext, cmd.OutOrStdout(), logger, observability.NewMetrics()).Run(cmd.Context())
		return nil
	},
}

func init() {
	waveformsCmd.Flags().StringVar(&waveformDir, "dir", "", "waveform folder (default WAVEFORM_DIR)")
	waveformsCmd.Flags().StringVar(&waveformExt, "ext", "", "file extension to match (default WAVEFORM_EXT)")
}
