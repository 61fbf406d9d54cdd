// File: cmd/version.go
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/loks666/anyrouter-autolog/cmd.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("anyrouter-autolog %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
