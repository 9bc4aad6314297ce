package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/agentlock"
	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/output"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/vault"
)

// dataDirName is the folder holding plugsync's own files inside the plugin root.
const dataDirName = "plugin-sync"

var version string

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "plugsync",
	Short: "Keep an Obsidian plugin in sync with a development server",
	Long: `plugsync - Polls a development server for changed plugin files and writes
them into the selected plugin's folder inside an Obsidian vault.

Run "plugsync settings" once to pick the target plugin, then "plugsync run"
to keep it up to date.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name"
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)
	cobra.AddTemplateFunc("add", func(a, b int) int { return a + b })
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.String("vault", "", "Vault directory (env PLUGSYNC_VAULT, default: working directory)")
	pf.String("config-dir", vault.DefaultConfigDir, "Vault config folder name")
	pf.String("settings", "", "Settings file (default: <vault>/<config-dir>/plugins/plugin-sync/data.json)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (env PLUGSYNC_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: text, json (env PLUGSYNC_LOG_FORMAT)")
}

// Custom usage template that shows aliases inline and groups commands.
const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.
`

// setupLogging installs the default slog handler. Precedence for level and
// format: flag > env > command default ("log-level" annotation) > warn/text.
func setupLogging(cmd *cobra.Command, args []string) error {
	levelStr := stringSetting(cmd, "log-level", "PLUGSYNC_LOG_LEVEL")
	if levelStr == "" {
		levelStr = cmd.Annotations["log-level"]
	}
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := strings.ToLower(stringSetting(cmd, "log-format", "PLUGSYNC_LOG_FORMAT")); format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q (use text or json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (use debug, info, warn or error)", s)
	}
}

// stringSetting returns the flag value if set, else the env value.
func stringSetting(cmd *cobra.Command, flag, env string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	return os.Getenv(env)
}

// workspace locates the vault and plugsync's files within it.
type workspace struct {
	VaultDir     string
	ConfigDir    string
	PluginRoot   string
	DataDir      string
	SettingsPath string
}

// HistoryPath returns the history database path.
func (w workspace) HistoryPath() string {
	return filepath.Join(w.DataDir, history.FileName)
}

// LockPath returns the agent lock path.
func (w workspace) LockPath() string {
	return filepath.Join(w.DataDir, agentlock.FileName)
}

func resolveWorkspace(cmd *cobra.Command) (workspace, error) {
	vaultDir := stringSetting(cmd, "vault", "PLUGSYNC_VAULT")
	if vaultDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return workspace{}, fmt.Errorf("cannot determine working directory: %w", err)
		}
		vaultDir = wd
	}
	vaultDir, err := filepath.Abs(vaultDir)
	if err != nil {
		return workspace{}, fmt.Errorf("resolve vault: %w", err)
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	if configDir == "" {
		configDir = vault.DefaultConfigDir
	}

	pluginRoot := vault.PluginRoot(vaultDir, configDir)
	ws := workspace{
		VaultDir:   vaultDir,
		ConfigDir:  configDir,
		PluginRoot: pluginRoot,
		DataDir:    filepath.Join(pluginRoot, dataDirName),
	}

	ws.SettingsPath, _ = cmd.Flags().GetString("settings")
	if ws.SettingsPath == "" {
		ws.SettingsPath = filepath.Join(ws.DataDir, settings.FileName)
	}
	return ws, nil
}
