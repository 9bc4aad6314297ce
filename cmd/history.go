package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/output"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show recently synced files",
	Long:    `Shows the outcome of every file handled by recent sync cycles, oldest first.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOut, _ := cmd.Flags().GetBool("json")
		clearFlag, _ := cmd.Flags().GetBool("clear")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		hdb, err := history.Open(a.ws.HistoryPath())
		if err != nil {
			return err
		}
		defer hdb.Close()

		if clearFlag {
			n, err := hdb.Clear()
			if err != nil {
				return err
			}
			output.Success("Cleared %d history entries", n)
			return nil
		}

		entries, err := hdb.Tail(limit)
		if err != nil {
			return err
		}
		if jsonOut {
			if entries == nil {
				entries = []history.Entry{}
			}
			return output.JSON(entries)
		}
		if len(entries) == 0 {
			output.Info("No sync history")
			return nil
		}
		for _, e := range entries {
			output.Info("%s", output.FormatEntry(e))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.Flags().Bool("clear", false, "Delete all history")
}
