package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vibemesh",
	Short: "On-device ambient character inference for geographic cells",
	Long:  "Vibemesh fuses shared aggregates, private on-device learning, and peer gossip into a per-cell vibe vector. Single Go binary, works offline.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inferCmd)
}
