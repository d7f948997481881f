// Command enginectl is a demo host for the fortuned audio engine: it
// opens a real playback device via malgo and drives engine.Engine.Render
// from the device's data callback, standing in for the mobile app's
// embedding layer.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Demo host for the fortuned step-sequencer audio engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an engine YAML config file")

	root.AddCommand(newPlayCmd(&configPath))
	root.AddCommand(newRecordCmd(&configPath))
	root.AddCommand(newBenchCmd(&configPath))
	return root
}
