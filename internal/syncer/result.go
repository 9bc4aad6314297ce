package syncer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/registry"
	"github.com/marcus/plugsync/internal/syncclient"
)

// Error taxonomy for a sync cycle. Match with errors.Is.
var (
	ErrServerUnreachable  = syncclient.ErrServerUnreachable
	ErrDecode             = syncclient.ErrDecode
	ErrNoPluginSelected   = errors.New("no plugin selected")
	ErrPluginNotInstalled = registry.ErrNotInstalled
	ErrWrite              = errors.New("write failed")
	ErrCycleInProgress    = errors.New("sync cycle already in progress")
)

// Notice is a one-line user-facing message about a cycle.
type Notice struct {
	Level   slog.Level
	Message string
	Count   int // files written, for update notices
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Recorder persists per-file outcomes. *history.DB implements it.
type Recorder interface {
	Record(entries []history.Entry) error
}

// Installed reports whether a plugin id is installed. *registry.Registry implements it.
type Installed interface {
	IsInstalled(id string) bool
}

// FileResult is the outcome of one changed file.
type FileResult struct {
	Path        string `json:"path"`
	Filename    string `json:"filename,omitempty"`
	Destination string `json:"destination,omitempty"`
	Bytes       int    `json:"bytes"`
	Status      string `json:"status"` // history.Status*
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}

func (f *FileResult) fail(status string, err error) {
	f.Status = status
	f.Err = err
	f.Error = err.Error()
}

// Result is the structured outcome of one cycle.
type Result struct {
	CycleID  string        `json:"cycle_id"`
	PluginID string        `json:"plugin_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    []FileResult  `json:"files"`
	Written  int           `json:"written"`
	Cleared  bool          `json:"cleared"`
}

// Failed returns how many files were skipped or failed.
func (r *Result) Failed() int {
	return len(r.Files) - r.Written
}

// Summary renders a one-line description of the cycle.
func (r *Result) Summary() string {
	if len(r.Files) == 0 {
		return "no changes"
	}
	s := fmt.Sprintf("%d/%d files updated", r.Written, len(r.Files))
	if !r.Cleared {
		s += " (change list not cleared)"
	}
	return s
}

func (r *Result) entries() []history.Entry {
	entries := make([]history.Entry, 0, len(r.Files))
	for _, f := range r.Files {
		entries = append(entries, history.Entry{
			CycleID:     r.CycleID,
			Path:        f.Path,
			Filename:    f.Filename,
			PluginID:    r.PluginID,
			Destination: f.Destination,
			Bytes:       f.Bytes,
			Status:      f.Status,
			Error:       f.Error,
			Timestamp:   r.Started,
		})
	}
	return entries
}
