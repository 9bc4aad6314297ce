package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/output"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check for plugin updates now",
	Long: `Runs exactly one sync cycle: fetches the change list, downloads each changed
file into the selected plugin's folder and clears the list on the server.

Fails if an agent ("plugsync run" or "plugsync monitor") is already running
for this vault; press s in the monitor instead.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}

		opts := syncOptions{Notifier: output.Notifier{}}
		if jsonOut {
			opts.Notifier = nil
		}
		if err := a.startSync(opts); err != nil {
			return err
		}
		defer a.close()

		res, err := a.sync.CheckForUpdates(cmd.Context())
		if jsonOut {
			if res != nil {
				if jerr := output.JSON(res); jerr != nil {
					return jerr
				}
			}
			return err
		}
		if res != nil {
			output.Info("%s", output.FormatResult(res))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("json", false, "Print the cycle result as JSON")
}
