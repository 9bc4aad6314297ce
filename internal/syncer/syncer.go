// Package syncer runs the poll/download/clear cycle that copies a target
// plugin's changed files from the development server into the vault.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/metrics"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncclient"
	"github.com/marcus/plugsync/internal/vault"
)

// Options configures a Synchronizer. Source and Vault are required.
type Options struct {
	Source   settings.Source
	Vault    *vault.Vault
	Plugins  Installed // nil skips the installed check
	Notifier Notifier
	Recorder Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Clock    clock.WithTicker
	HTTP     *http.Client
}

// Synchronizer owns the poll ticker and runs sync cycles.
type Synchronizer struct {
	source   settings.Source
	vault    *vault.Vault
	plugins  Installed
	notifier Notifier
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    clock.WithTicker
	http     *http.Client

	mu       sync.Mutex
	base     context.Context
	cancel   context.CancelFunc
	ticker   clock.Ticker
	interval time.Duration
	wg       sync.WaitGroup

	busy        atomic.Bool
	unreachable atomic.Bool
}

// New creates a Synchronizer. It does not start polling.
func New(opts Options) *Synchronizer {
	s := &Synchronizer{
		source:   opts.Source,
		vault:    opts.Vault,
		plugins:  opts.Plugins,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		clock:    opts.Clock,
		http:     opts.HTTP,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Notice) {})
	}
	return s
}

// Start begins polling at the current poll interval. A running ticker is
// stopped first, so at most one ticker exists. Cycles run on ctx; Stop does
// not cancel a cycle that is already in flight.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = ctx
	s.startLocked()
}

// Stop cancels the ticker if one is active. Safe to call when stopped.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Restart stops the ticker and starts a new one on the current interval.
func (s *Synchronizer) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.startLocked()
}

// Apply brings the ticker in line with the current settings: restarted on the
// configured interval when enabled, stopped when disabled.
func (s *Synchronizer) Apply() {
	cfg := s.source.Current()
	if !cfg.Enabled {
		s.Stop()
		return
	}
	s.Restart()
}

// Running reports whether a ticker is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// Interval returns the active ticker's interval, or 0 when stopped.
func (s *Synchronizer) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Wait stops polling and blocks until every ticker goroutine, including any
// cycle it is running, has returned.
func (s *Synchronizer) Wait() {
	s.Stop()
	s.wg.Wait()
}

func (s *Synchronizer) startLocked() {
	s.stopLocked()

	base := s.base
	if base == nil {
		base = context.Background()
		s.base = base
	}
	interval := s.source.Current().Interval()
	if interval <= 0 {
		s.logger.Warn("not polling: invalid interval", "interval", interval)
		return
	}

	loopCtx, cancel := context.WithCancel(base)
	ticker := s.clock.NewTicker(interval)
	s.cancel = cancel
	s.ticker = ticker
	s.interval = interval

	s.wg.Add(1)
	go s.loop(loopCtx, base, ticker)
	s.logger.Debug("polling started", "interval", interval)
}

func (s *Synchronizer) stopLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.ticker = nil
	s.cancel = nil
	s.interval = 0
	s.logger.Debug("polling stopped")
}

func (s *Synchronizer) loop(loopCtx, cycleCtx context.Context, ticker clock.Ticker) {
	defer s.wg.Done()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C():
			// A tick buffered before Stop must not start a cycle.
			if loopCtx.Err() != nil {
				return
			}
			s.tick(cycleCtx)
		}
	}
}

// tick runs one polled cycle. A panic ends that cycle only; the ticker keeps
// running.
func (s *Synchronizer) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync cycle panic", "panic", r)
		}
	}()
	s.CheckForUpdates(ctx)
}

// CheckForUpdates runs one cycle: fetch the change list, download and write
// each file in order, notify, then clear the server's list. A call that
// arrives while another cycle is running returns ErrCycleInProgress.
func (s *Synchronizer) CheckForUpdates(ctx context.Context) (*Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("sync cycle skipped: previous cycle still running")
		s.metrics.ObserveCycle(metrics.ResultCoalesced, 0, s.clock.Now())
		return nil, ErrCycleInProgress
	}
	defer s.busy.Store(false)

	cfg := s.source.Current()
	res := &Result{
		CycleID:  uuid.NewString(),
		PluginID: cfg.SelectedPluginID,
		Started:  s.clock.Now(),
	}
	logger := s.logger.With("cycle", res.CycleID)

	err := s.runCycle(ctx, s.client(cfg), cfg, res, logger)
	res.Duration = s.clock.Since(res.Started)
	s.finish(res, err, logger)
	return res, err
}

func (s *Synchronizer) runCycle(ctx context.Context, client *syncclient.Client, cfg settings.Settings, res *Result, logger *slog.Logger) error {
	updates, err := client.CheckUpdates(ctx)
	if err != nil {
		logger.Error("sync error", "err", err)
		return err
	}
	s.markReachable()

	if len(updates.Files) == 0 {
		return nil
	}

	for _, f := range updates.Files {
		fr := s.downloadAndSave(ctx, client, cfg, f.Path, logger)
		if fr.Status == history.StatusWritten {
			res.Written++
		}
		res.Files = append(res.Files, fr)
	}

	s.notifyResult(res)

	if err := client.ClearUpdates(ctx); err != nil {
		logger.Error("sync error", "step", "clear-updates", "err", err)
		return fmt.Errorf("clear updates: %w", err)
	}
	res.Cleared = true
	return nil
}

// DownloadAndSaveFile downloads one changed file and writes it into the
// selected plugin's folder using the current settings.
func (s *Synchronizer) DownloadAndSaveFile(ctx context.Context, path string) FileResult {
	cfg := s.source.Current()
	return s.downloadAndSave(ctx, s.client(cfg), cfg, path, s.logger)
}

func (s *Synchronizer) downloadAndSave(ctx context.Context, client *syncclient.Client, cfg settings.Settings, path string, logger *slog.Logger) FileResult {
	fr := FileResult{Path: path}
	defer func() { s.metrics.ObserveFile(fr.Status) }()

	fc, err := client.GetFile(ctx, path)
	if err != nil {
		fr.fail(history.StatusFailed, err)
		logger.Error("download failed", "path", path, "err", err)
		return fr
	}
	fr.Filename = fc.Filename

	pluginID := cfg.SelectedPluginID
	if pluginID == "" {
		fr.fail(history.StatusSkipped, ErrNoPluginSelected)
		logger.Error("no plugin selected", "path", path)
		return fr
	}
	if s.plugins != nil && !s.plugins.IsInstalled(pluginID) {
		fr.fail(history.StatusSkipped, fmt.Errorf("%w: %s", ErrPluginNotInstalled, pluginID))
		logger.Error("selected plugin not installed", "plugin", pluginID, "path", path)
		return fr
	}

	dest, err := s.vault.Write([]byte(fc.Content), pluginID, fc.Filename)
	if err != nil {
		fr.fail(history.StatusFailed, fmt.Errorf("%w: %w", ErrWrite, err))
		logger.Error("write failed", "plugin", pluginID, "file", fc.Filename, "err", err)
		return fr
	}

	fr.Destination = dest
	fr.Bytes = len(fc.Content)
	fr.Status = history.StatusWritten
	logger.Info("updated", "file", dest)
	return fr
}

func (s *Synchronizer) client(cfg settings.Settings) *syncclient.Client {
	c := syncclient.New(cfg.ServerURL)
	if s.http != nil {
		c.HTTP = s.http
	}
	return c
}

func (s *Synchronizer) notifyResult(res *Result) {
	if res.PluginID == "" {
		s.notifier.Notify(Notice{
			Level:   slog.LevelWarn,
			Message: fmt.Sprintf("No target plugin selected: %d changed %s skipped", len(res.Files), plural(len(res.Files), "file", "files")),
		})
		return
	}

	s.notifier.Notify(Notice{
		Level:   slog.LevelInfo,
		Message: fmt.Sprintf("Updated %d %s", res.Written, plural(res.Written, "file", "files")),
		Count:   res.Written,
	})
	if failed := res.Failed(); failed > 0 {
		s.notifier.Notify(Notice{
			Level:   slog.LevelWarn,
			Message: fmt.Sprintf("%d %s could not be updated (see history)", failed, plural(failed, "file", "files")),
		})
	}
}

// markReachable announces recovery after an unreachable period.
func (s *Synchronizer) markReachable() {
	if s.unreachable.Swap(false) {
		s.notifier.Notify(Notice{Level: slog.LevelInfo, Message: "Sync server reachable again"})
	}
}

func (s *Synchronizer) finish(res *Result, err error, logger *slog.Logger) {
	result := metrics.ResultEmpty
	switch {
	case err != nil:
		result = metrics.ResultError
		if len(res.Files) > 0 {
			break
		}
		switch {
		case errors.Is(err, ErrServerUnreachable):
			if !s.unreachable.Swap(true) {
				s.notifier.Notify(Notice{Level: slog.LevelWarn, Message: fmt.Sprintf("Sync server unreachable: %v", err)})
			}
		case errors.Is(err, ErrDecode):
			// The server answered, so it is reachable.
			s.markReachable()
			s.notifier.Notify(Notice{Level: slog.LevelWarn, Message: fmt.Sprintf("Sync server sent an invalid change list: %v", err)})
		}
	case len(res.Files) > 0:
		result = metrics.ResultUpdated
	}
	s.metrics.ObserveCycle(result, res.Duration, res.Started)

	if s.recorder != nil {
		if rerr := s.recorder.Record(res.entries()); rerr != nil {
			logger.Warn("record history", "err", rerr)
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
