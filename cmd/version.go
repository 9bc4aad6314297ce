package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/output"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the plugsync version",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		output.Info("plugsync %s", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
