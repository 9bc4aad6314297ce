package cmd

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/output"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit sync settings interactively",
	Long: `Opens a form with the four sync settings: target plugin, server URL, poll
interval and auto sync. Each changed field is saved on its own; a running
agent restarts its poll ticker when the interval or auto sync changes.`,
	GroupID: "config",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}

		changed, err := a.provider().Run(cmd.Context())
		if errors.Is(err, huh.ErrUserAborted) {
			output.Info("Cancelled; settings unchanged")
			return nil
		}
		if len(changed) > 0 {
			output.Success("Saved %s", strings.Join(changed, ", "))
		}
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			output.Info("No changes")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
