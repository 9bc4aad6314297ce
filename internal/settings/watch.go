package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 150 * time.Millisecond

// Watch reloads the store whenever its backing file changes on disk, so edits
// made by another plugsync process reach this one. It blocks until ctx is done.
// The parent directory is watched because saves replace the file by rename.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Base(s.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(defaultWatchDebounce)
			} else {
				timer.Reset(defaultWatchDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watch", "err", err)

		case <-fire:
			fire = nil
			changed, err := s.Reload()
			if err != nil {
				logger.Warn("reload settings", "path", s.path, "err", err)
				continue
			}
			if changed {
				logger.Info("settings reloaded", "path", s.path)
			}
		}
	}
}
