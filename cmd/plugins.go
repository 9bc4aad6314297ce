package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/output"
)

const readmeFile = "README.md"

var pluginsCmd = &cobra.Command{
	Use:     "plugins",
	Aliases: []string{"plugin"},
	Short:   "List installed plugins",
	GroupID: "config",
}

var pluginsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed plugins sorted by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		plugins, err := a.registry.List()
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(plugins)
		}

		if len(plugins) == 0 {
			output.Info("No plugins installed in %s", a.ws.PluginRoot)
			return nil
		}
		selected := a.store.Effective().SelectedPluginID
		for _, p := range plugins {
			output.Info("%s", output.FormatPluginShort(p, p.ID == selected))
		}
		return nil
	},
}

var pluginsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a plugin's manifest and README",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		p, err := a.registry.Get(args[0])
		if err != nil {
			return err
		}

		output.Info("%s", output.FormatPluginLong(p))

		readme, err := os.ReadFile(filepath.Join(p.Dir, readmeFile))
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		rendered, err := output.RenderMarkdown(string(readme))
		if err != nil {
			// Fall back to the raw text.
			rendered = string(readme)
		}
		output.Info("%s", rendered)
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd)
	pluginsCmd.AddCommand(pluginsShowCmd)
	pluginsListCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(pluginsCmd)
}
