package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/plugsync/internal/syncer"
	"github.com/marcus/plugsync/internal/tui/monitor"
)

const (
	noticeBuffer   = 32
	monitorLogFile = "monitor.log"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI dashboard that runs the sync agent",
	Long: `Runs the sync agent inside a live-updating dashboard showing the current
settings, the last cycle, recent notices and sync history.

Key bindings:
  s    Sync now
  e    Toggle auto sync
  +/-  Double or halve the poll interval
  i    Type a poll interval
  r    Force refresh
  ?    Toggle help
  q    Quit`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = time.Second
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}

		// Logs would corrupt the alt screen; send them to a file instead.
		logFile, err := openMonitorLog(a.ws.DataDir)
		if err != nil {
			return err
		}
		defer logFile.Close()
		a.logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

		notices := make(monitor.ChannelNotifier, noticeBuffer)
		if err := a.startSync(syncOptions{Notifier: notices}); err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		a.sync.Start(ctx)
		if !a.store.Effective().Enabled {
			a.sync.Stop()
		}

		// Edits from "config set" or "settings" in another terminal reach the
		// dashboard through the same watch the agent runs.
		stopWatch, err := watchSettings(ctx, a)
		if err != nil {
			return err
		}
		defer stopWatch()

		model := monitor.NewModel(ctx, a.sync, a.panel, a.history, (<-chan syncer.Notice)(notices), interval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

// watchSettings reloads a's store in the background until the returned
// stop function is called or ctx is done.
func watchSettings(ctx context.Context, a *app) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(a.store.Path()), 0o755); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.store.Watch(ctx, a.logger); err != nil {
			a.logger.Warn("settings watch stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func openMonitorLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, monitorLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", time.Second, "Refresh interval")
}
