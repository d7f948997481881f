package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/luddite478/fortuned-sub004/internal/engine"
	"github.com/luddite478/fortuned-sub004/internal/engineconfig"
	"github.com/luddite478/fortuned-sub004/internal/table"
)

// newBenchCmd renders directly, with no device, to measure how many
// callback buffers the scheduler/voice pipeline can produce per second
// of wall-clock CPU time — useful for checking a change hasn't pushed
// per-callback work past the real-time budget.
func newBenchCmd(configPath *string) *cobra.Command {
	var (
		bpm         int
		seconds     int
		bufferSize  int
		sampleCount int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Render N seconds of audio with no device attached and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineconfig.Load(*configPath)
			if err != nil {
				return err
			}
			eng := engine.Init(cfg)
			defer eng.Cleanup()

			if sampleCount > table.MaxColumns {
				sampleCount = table.MaxColumns
			}
			for slot := 0; slot < sampleCount; slot++ {
				if err := eng.SetCell(0, slot, slot, table.SentinelInherit, table.SentinelInherit); err != nil {
					return err
				}
			}
			if err := eng.PlaybackStart(bpm, 0); err != nil {
				return err
			}

			dst := make([]float32, bufferSize*2)
			targetFrames := cfg.SampleRate * seconds
			rendered := 0
			start := time.Now()
			for rendered < targetFrames {
				eng.Render(dst)
				rendered += bufferSize
			}
			elapsed := time.Since(start)

			log.Printf("🎚️  rendered %ds of audio (%d frames) in %s (%.2fx real-time)",
				seconds, rendered, elapsed, float64(seconds)/elapsed.Seconds())
			return nil
		},
	}

	cmd.Flags().IntVar(&bpm, "bpm", 120, "tempo in beats per minute")
	cmd.Flags().IntVar(&seconds, "seconds", 10, "how many seconds of audio to render")
	cmd.Flags().IntVar(&bufferSize, "buffer-frames", 512, "frames per simulated callback")
	cmd.Flags().IntVar(&sampleCount, "columns", 0, "number of columns to trigger with an (unloaded) sample reference")
	return cmd
}
