// Package panel is the settings provider: it binds the four user-facing
// settings to a huh form, saves each changed field on its own, and restarts
// the synchronizer when the poll interval or enabled flag changes.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/marcus/plugsync/internal/registry"
	"github.com/marcus/plugsync/internal/settings"
)

// NotSelectedLabel is the sentinel option shown first in the plugin dropdown.
const NotSelectedLabel = "Select a plugin"

var errServerURLRequired = errors.New("server URL is required")

// Applier is the synchronizer surface the panel drives.
type Applier interface {
	Apply()
}

// Lister lists installed plugins. *registry.Registry implements it.
type Lister interface {
	List() ([]registry.Plugin, error)
}

// Provider edits settings and keeps the synchronizer's ticker in step.
type Provider struct {
	store   *settings.Store
	sync    Applier
	plugins Lister
	logger  *slog.Logger
}

// New creates a provider and hooks ticker restarts onto store changes, so
// reloads from disk restart the ticker the same way form edits do.
// sync may be nil when no synchronizer runs in this process.
func New(store *settings.Store, sync Applier, plugins Lister, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{store: store, sync: sync, plugins: plugins, logger: logger}
	if sync != nil {
		store.OnChange(func(old, next settings.Settings) {
			if old.TimerChanged(next) {
				p.logger.Debug("restarting poll ticker", "enabled", next.Enabled, "interval_ms", next.PollInterval)
				sync.Apply()
			}
		})
	}
	return p
}

// Settings returns the current persisted settings.
func (p *Provider) Settings() settings.Settings {
	return p.store.Current()
}

// SetServerURL saves the sync server URL.
func (p *Provider) SetServerURL(raw string) error {
	val, err := normalizeServerURL(raw)
	if err != nil {
		return err
	}
	return p.store.Update(func(s *settings.Settings) { s.ServerURL = val })
}

// SetPollInterval parses and saves a poll interval in milliseconds. Invalid
// values are rejected and the previous interval stays in effect.
func (p *Provider) SetPollInterval(raw string) error {
	n, err := settings.ParsePollInterval(raw)
	if err != nil {
		return err
	}
	return p.store.Update(func(s *settings.Settings) { s.PollInterval = n })
}

// SetEnabled turns automatic syncing on or off.
func (p *Provider) SetEnabled(enabled bool) error {
	return p.store.Update(func(s *settings.Settings) { s.Enabled = enabled })
}

// SelectPlugin saves the target plugin. An empty id clears the selection;
// any other id must be installed.
func (p *Provider) SelectPlugin(id string) error {
	id = strings.TrimSpace(id)
	if id != "" && p.plugins != nil {
		plugins, err := p.plugins.List()
		if err != nil {
			return err
		}
		if !containsPlugin(plugins, id) {
			return fmt.Errorf("%w: %s", registry.ErrNotInstalled, id)
		}
	}
	return p.store.Update(func(s *settings.Settings) { s.SelectedPluginID = id })
}

// PluginOptions returns the dropdown options: the "not selected" sentinel
// first, then installed plugins sorted by name. A selected id that is no
// longer installed is kept as an option so the form does not silently drop it.
func (p *Provider) PluginOptions() ([]huh.Option[string], error) {
	opts := []huh.Option[string]{huh.NewOption(NotSelectedLabel, "")}
	if p.plugins == nil {
		return opts, nil
	}

	plugins, err := p.plugins.List()
	if err != nil {
		return nil, err
	}
	for _, pl := range plugins {
		opts = append(opts, huh.NewOption(pl.Name, pl.ID))
	}

	if cur := p.store.Current().SelectedPluginID; cur != "" && !containsPlugin(plugins, cur) {
		opts = append(opts, huh.NewOption(cur+" (not installed)", cur))
	}
	return opts, nil
}

// Draft holds the values bound to the form fields.
type Draft struct {
	PluginID     string
	ServerURL    string
	PollInterval string
	Enabled      bool
}

// DraftFrom builds form values from settings.
func DraftFrom(s settings.Settings) *Draft {
	return &Draft{
		PluginID:     s.SelectedPluginID,
		ServerURL:    s.ServerURL,
		PollInterval: strconv.Itoa(s.PollInterval),
		Enabled:      s.Enabled,
	}
}

// Form builds the settings form bound to a fresh draft of the current settings.
func (p *Provider) Form() (*huh.Form, *Draft, error) {
	options, err := p.PluginOptions()
	if err != nil {
		return nil, nil, err
	}
	d := DraftFrom(p.store.Current())

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target plugin").
				Description("Plugin whose files are synced").
				Options(options...).
				Value(&d.PluginID),
			huh.NewInput().
				Title("Server URL").
				Description("URL of the sync server").
				Placeholder(settings.DefaultServerURL).
				Value(&d.ServerURL).
				Validate(func(s string) error {
					_, err := normalizeServerURL(s)
					return err
				}),
			huh.NewInput().
				Title("Poll interval").
				Description("Milliseconds between update checks").
				Placeholder(strconv.Itoa(settings.DefaultPollInterval)).
				Value(&d.PollInterval).
				Validate(func(s string) error {
					_, err := settings.ParsePollInterval(s)
					return err
				}),
			huh.NewConfirm().
				Title("Auto sync").
				Description("Poll the server automatically").
				Affirmative("Enabled").
				Negative("Disabled").
				Value(&d.Enabled),
		).Title("plugsync settings"),
	)
	return form, d, nil
}

// Run shows the form and applies the result.
func (p *Provider) Run(ctx context.Context) ([]string, error) {
	form, d, err := p.Form()
	if err != nil {
		return nil, err
	}
	if err := form.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return p.ApplyDraft(d)
}

// ApplyDraft saves every field that differs from the current settings through
// its own setter. It returns the names of the fields that changed; the first
// error stops further fields from being applied.
func (p *Provider) ApplyDraft(d *Draft) ([]string, error) {
	cur := p.store.Current()
	var changed []string

	if d.PluginID != cur.SelectedPluginID {
		if err := p.SelectPlugin(d.PluginID); err != nil {
			return changed, err
		}
		changed = append(changed, "selectedPluginId")
	}
	if url, err := normalizeServerURL(d.ServerURL); err != nil || url != cur.ServerURL {
		if err := p.SetServerURL(d.ServerURL); err != nil {
			return changed, err
		}
		changed = append(changed, "serverUrl")
	}
	if d.PollInterval != strconv.Itoa(cur.PollInterval) {
		if err := p.SetPollInterval(d.PollInterval); err != nil {
			return changed, err
		}
		if p.store.Current().PollInterval != cur.PollInterval {
			changed = append(changed, "pollInterval")
		}
	}
	if d.Enabled != cur.Enabled {
		if err := p.SetEnabled(d.Enabled); err != nil {
			return changed, err
		}
		changed = append(changed, "enabled")
	}
	return changed, nil
}

func normalizeServerURL(raw string) (string, error) {
	val := strings.TrimRight(strings.TrimSpace(raw), "/")
	if val == "" {
		return "", errServerURLRequired
	}
	u, err := url.Parse(val)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return val, nil
}

func containsPlugin(plugins []registry.Plugin, id string) bool {
	for _, pl := range plugins {
		if pl.ID == id {
			return true
		}
	}
	return false
}
