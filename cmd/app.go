package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/agentlock"
	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/metrics"
	"github.com/marcus/plugsync/internal/panel"
	"github.com/marcus/plugsync/internal/registry"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncer"
	"github.com/marcus/plugsync/internal/vault"
)

// app holds the components shared by commands.
type app struct {
	ws       workspace
	store    *settings.Store
	registry *registry.Registry
	logger   *slog.Logger

	history *history.DB
	lock    *agentlock.Lock
	sync    *syncer.Synchronizer
	panel   *panel.Provider
}

// openApp resolves the workspace and loads settings.
func openApp(cmd *cobra.Command) (*app, error) {
	ws, err := resolveWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	store, err := settings.Open(ws.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &app{
		ws:       ws,
		store:    store,
		registry: registry.New(ws.PluginRoot),
		logger:   slog.Default(),
	}, nil
}

// syncOptions configures how startSync builds the synchronizer.
type syncOptions struct {
	Notifier syncer.Notifier
	Metrics  *metrics.Metrics
}

// startSync takes the agent lock, opens history and builds the synchronizer
// and the settings provider bound to it. Callers must call close.
func (a *app) startSync(opts syncOptions) error {
	a.lock = agentlock.New(a.ws.LockPath())
	if err := a.lock.Acquire(0); err != nil {
		return err
	}

	hdb, err := history.Open(a.ws.HistoryPath())
	if err != nil {
		a.lock.Release()
		return fmt.Errorf("open history: %w", err)
	}
	a.history = hdb

	a.sync = syncer.New(syncer.Options{
		Source:   settings.SourceFunc(a.store.Effective),
		Vault:    vault.New(a.ws.PluginRoot),
		Plugins:  a.registry,
		Notifier: opts.Notifier,
		Recorder: hdb,
		Metrics:  opts.Metrics,
		Logger:   a.logger,
	})
	a.panel = panel.New(a.store, a.sync, a.registry, a.logger)
	return nil
}

// provider returns a settings provider with no synchronizer attached. A
// running agent or monitor picks up saved changes through its settings watch.
func (a *app) provider() *panel.Provider {
	if a.panel == nil {
		a.panel = panel.New(a.store, nil, a.registry, a.logger)
	}
	return a.panel
}

func (a *app) close() {
	if a.sync != nil {
		a.sync.Wait()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("close history", "err", err)
		}
	}
	if a.lock != nil {
		a.lock.Release()
	}
}
