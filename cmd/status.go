package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/agentlock"
	"github.com/marcus/plugsync/internal/output"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncclient"
)

const statusProbeTimeout = 5 * time.Second

// statusReport is the JSON shape of "plugsync status".
type statusReport struct {
	Vault           string            `json:"vault"`
	SettingsFile    string            `json:"settings_file"`
	Settings        settings.Settings `json:"settings"`
	PluginInstalled bool              `json:"plugin_installed"`
	Agent           string            `json:"agent"`
	ServerReachable bool              `json:"server_reachable"`
	ServerError     string            `json:"server_error,omitempty"`
	PendingFiles    int               `json:"pending_files"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show settings, agent and server status",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		report := buildStatus(cmd.Context(), a)

		if jsonOut {
			return output.JSON(report)
		}
		printStatus(report)
		return nil
	},
}

func buildStatus(ctx context.Context, a *app) statusReport {
	eff := a.store.Effective()
	r := statusReport{
		Vault:        a.ws.VaultDir,
		SettingsFile: a.ws.SettingsPath,
		Settings:     eff,
		Agent:        agentState(a.ws.LockPath()),
	}
	if eff.SelectedPluginID != "" {
		r.PluginInstalled = a.registry.IsInstalled(eff.SelectedPluginID)
	}

	ctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()
	// check-updates only reads the change list; nothing is consumed.
	updates, err := syncclient.New(eff.ServerURL).CheckUpdates(ctx)
	if err != nil {
		r.ServerError = err.Error()
	} else {
		r.ServerReachable = true
		r.PendingFiles = len(updates.Files)
	}
	return r
}

// agentState reports "stopped" when the agent lock is free, else its holder.
func agentState(lockPath string) string {
	l := agentlock.New(lockPath)
	err := l.Acquire(0)
	if err == nil {
		l.Release()
		return "stopped"
	}
	if errors.Is(err, agentlock.ErrHeld) {
		return "running " + l.Holder()
	}
	return "unknown: " + err.Error()
}

func printStatus(r statusReport) {
	output.Info("%s", output.SectionHeader("settings"))
	output.Info("  Vault:        %s", r.Vault)
	output.Info("  Settings:     %s", r.SettingsFile)
	output.Info("  Server:       %s", r.Settings.ServerURL)
	output.Info("  Poll:         every %dms", r.Settings.PollInterval)
	output.Info("  Auto sync:    %s", onOff(r.Settings.Enabled))

	switch {
	case r.Settings.SelectedPluginID == "":
		output.Warning("no target plugin selected (plugsync settings)")
	case !r.PluginInstalled:
		output.Warning("plugin %q is not installed", r.Settings.SelectedPluginID)
	default:
		output.Info("  Plugin:       %s", r.Settings.SelectedPluginID)
	}

	output.Info("%s", output.SectionHeader("agent"))
	output.Info("  %s", r.Agent)

	output.Info("%s", output.SectionHeader("server"))
	if r.ServerReachable {
		output.Success("  reachable, %s pending", pendingLabel(r.PendingFiles))
	} else {
		output.Error("unreachable: %s", r.ServerError)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func pendingLabel(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}
