package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "canward",
	Short: "Safety gate for CAN bus frame injection",
	Long: "Validates every outbound CAN frame against operating-mode policy and\n" +
		"rate-limits transmission per address and globally, before the frame is\n" +
		"handed to the vehicle gateway. Best-effort software gate; the hardware\n" +
		"safety model downstream remains authoritative.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
