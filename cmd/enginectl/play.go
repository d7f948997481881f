package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/luddite478/fortuned-sub004/internal/engine"
	"github.com/luddite478/fortuned-sub004/internal/engineconfig"
	"github.com/luddite478/fortuned-sub004/internal/table"
)

func newPlayCmd(configPath *string) *cobra.Command {
	var (
		bpm     int
		seconds int
		samples []string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Load samples into slots 0..N, loop section 0, and play through a real device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineconfig.Load(*configPath)
			if err != nil {
				return err
			}
			eng := engine.Init(cfg)
			defer eng.Cleanup()

			for slot, path := range samples {
				if err := eng.BankLoad(slot, path); err != nil {
					return err
				}
				if err := eng.SetCell(0, slot, slot, table.SentinelInherit, table.SentinelInherit); err != nil {
					return err
				}
			}

			ctx, device, err := openPlaybackDevice(eng, cfg.SampleRate)
			if err != nil {
				return err
			}
			defer closePlaybackDevice(ctx, device)

			if err := eng.PlaybackStart(bpm, 0); err != nil {
				return err
			}
			log.Printf("🎚️  playing %d sample(s) at %d bpm for %ds", len(samples), bpm, seconds)
			time.Sleep(time.Duration(seconds) * time.Second)
			eng.PlaybackStop()
			return nil
		},
	}

	cmd.Flags().IntVar(&bpm, "bpm", 120, "tempo in beats per minute")
	cmd.Flags().IntVar(&seconds, "seconds", 4, "how long to play before stopping")
	cmd.Flags().StringSliceVar(&samples, "sample", nil, "WAV file to load into the next free slot, column (repeatable)")
	return cmd
}
