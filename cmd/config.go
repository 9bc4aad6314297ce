package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/output"
	"github.com/marcus/plugsync/internal/panel"
	"github.com/marcus/plugsync/internal/settings"
)

// validConfigKeys lists the supported config keys for set/get, in data.json order.
var validConfigKeys = []string{
	"serverUrl",
	"pollInterval",
	"enabled",
	"selectedPluginId",
}

// configEnv maps each key to the environment variable that overrides it.
var configEnv = map[string]string{
	"serverUrl":        "PLUGSYNC_SERVER_URL",
	"pollInterval":     "PLUGSYNC_POLL_INTERVAL",
	"enabled":          "PLUGSYNC_ENABLED",
	"selectedPluginId": "PLUGSYNC_PLUGIN",
}

func isValidConfigKey(key string) bool {
	for _, k := range validConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}

func unknownKeyError(key string) error {
	output.Error("unknown config key: %s", key)
	output.Info("Valid keys: %s", strings.Join(validConfigKeys, ", "))
	return fmt.Errorf("unknown config key: %s", key)
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q (use true/false/1/0)", val)
	}
}

// setConfigValue saves one key through the settings provider's setter.
func setConfigValue(p *panel.Provider, key, val string) error {
	switch key {
	case "serverUrl":
		return p.SetServerURL(val)
	case "pollInterval":
		return p.SetPollInterval(val)
	case "enabled":
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		return p.SetEnabled(b)
	case "selectedPluginId":
		return p.SelectPlugin(val)
	}
	return fmt.Errorf("unknown config key: %s", key)
}

// configValue renders one key of s.
func configValue(s settings.Settings, key string) string {
	switch key {
	case "serverUrl":
		return s.ServerURL
	case "pollInterval":
		return strconv.Itoa(s.PollInterval)
	case "enabled":
		return strconv.FormatBool(s.Enabled)
	case "selectedPluginId":
		return s.SelectedPluginID
	}
	return ""
}

// configLine renders key's saved value, noting an environment override.
func configLine(saved, effective settings.Settings, key string) string {
	val := configValue(saved, key)
	if val == "" {
		val = `""`
	}
	if env := configEnv[key]; os.Getenv(env) != "" {
		if eff := configValue(effective, key); eff != configValue(saved, key) {
			val += fmt.Sprintf(" (overridden by %s=%s)", env, eff)
		}
	}
	return val
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage plugsync settings",
	GroupID: "config",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if !isValidConfigKey(key) {
			return unknownKeyError(key)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		if err := setConfigValue(a.provider(), key, val); err != nil {
			return err
		}

		output.Success("set %s = %s", key, configValue(a.store.Current(), key))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !isValidConfigKey(key) {
			return unknownKeyError(key)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		output.Info("%s", configValue(a.store.Effective(), key))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(a.store.Effective())
		}

		saved, eff := a.store.Current(), a.store.Effective()
		output.Info("# %s", a.ws.SettingsPath)
		for _, key := range validConfigKeys {
			output.Info("%s = %s", key, configLine(saved, eff, key))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configListCmd.Flags().Bool("json", false, "Output effective settings as JSON")
	rootCmd.AddCommand(configCmd)
}
