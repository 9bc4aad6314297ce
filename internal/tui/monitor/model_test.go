package monitor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncer"
)

type fakeSync struct {
	calls int
	res   *syncer.Result
	err   error
}

func (f *fakeSync) CheckForUpdates(ctx context.Context) (*syncer.Result, error) {
	f.calls++
	return f.res, f.err
}
func (f *fakeSync) Running() bool           { return true }
func (f *fakeSync) Interval() time.Duration { return 2 * time.Second }

type fakePanel struct {
	mu  sync.Mutex
	cur settings.Settings
}

func (f *fakePanel) Settings() settings.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakePanel) SetEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur.Enabled = enabled
	return nil
}

func (f *fakePanel) SetPollInterval(raw string) error {
	n, err := settings.ParsePollInterval(raw)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur.PollInterval = n
	return nil
}

type fakeHistory []history.Entry

func (h fakeHistory) Tail(limit int) ([]history.Entry, error) { return h, nil }

func newTestModel(t *testing.T) (Model, *fakeSync, *fakePanel) {
	t.Helper()
	s := &fakeSync{res: &syncer.Result{Written: 1, Files: []syncer.FileResult{{Path: "a.js"}}, Cleared: true}}
	p := &fakePanel{cur: settings.Defaults()}
	h := fakeHistory{{PluginID: "p", Filename: "a.js", Status: history.StatusWritten, Timestamp: time.Now()}}
	m := NewModel(context.Background(), s, p, h, nil, time.Second)
	m = refresh(t, m)
	return m, s, p
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back through Update.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func refresh(t *testing.T, m Model) Model {
	t.Helper()
	return run(t, m, m.fetchData())
}

func TestRefreshLoadsState(t *testing.T) {
	m, _, _ := newTestModel(t)
	if !m.Running || m.Interval != 2*time.Second {
		t.Errorf("running=%v interval=%v", m.Running, m.Interval)
	}
	if m.Current.PollInterval != settings.DefaultPollInterval {
		t.Errorf("settings not loaded: %+v", m.Current)
	}
	if len(m.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(m.Entries))
	}
}

func TestSyncKeyRunsCycle(t *testing.T) {
	m, s, _ := newTestModel(t)

	next, cmd := m.handleKey(keyMsg("s"))
	m = next.(Model)
	if !m.Syncing {
		t.Fatal("Syncing not set")
	}

	// A second press while syncing is ignored.
	if _, again := m.handleKey(keyMsg("s")); again != nil {
		t.Error("second sync press returned a command")
	}

	// runSync is the first command in the batch.
	done := m.runSync()()
	next, _ = m.Update(done)
	m = next.(Model)
	if m.Syncing {
		t.Error("Syncing still set after SyncDoneMsg")
	}
	if m.LastResult == nil || m.LastResult.Written != 1 {
		t.Errorf("LastResult = %+v", m.LastResult)
	}
	if s.calls != 1 {
		t.Errorf("CheckForUpdates calls = %d, want 1", s.calls)
	}
	if cmd == nil {
		t.Error("sync key returned no command")
	}
}

func TestSyncErrorBecomesNotice(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(SyncDoneMsg{Err: syncer.ErrCycleInProgress})
	m = next.(Model)
	if len(m.Recent) != 1 || !strings.Contains(m.Recent[0].Message, "already in progress") {
		t.Errorf("notices = %+v", m.Recent)
	}
}

func TestToggleKeyFlipsEnabled(t *testing.T) {
	m, _, p := newTestModel(t)
	_, cmd := m.handleKey(keyMsg("e"))
	m = run(t, m, cmd)
	if p.Settings().Enabled {
		t.Fatal("enabled not toggled off")
	}
	m = refresh(t, m)
	if m.Current.Enabled {
		t.Error("model did not pick up the change")
	}
}

func TestIntervalKeys(t *testing.T) {
	m, _, p := newTestModel(t)

	_, cmd := m.handleKey(keyMsg("+"))
	m = refresh(t, run(t, m, cmd))
	if got := p.Settings().PollInterval; got != 4000 {
		t.Fatalf("after + interval = %d, want 4000", got)
	}

	_, cmd = m.handleKey(keyMsg("-"))
	m = refresh(t, run(t, m, cmd))
	_, cmd = m.handleKey(keyMsg("-"))
	run(t, m, cmd)
	if got := p.Settings().PollInterval; got != 1000 {
		t.Fatalf("after - - interval = %d, want 1000", got)
	}
}

func TestEditIntervalRejectsInvalid(t *testing.T) {
	m, _, p := newTestModel(t)

	next, _ := m.handleKey(keyMsg("i"))
	m = next.(Model)
	if !m.editing {
		t.Fatal("not editing after i")
	}
	for _, r := range "abc" {
		next, _ = m.Update(keyMsg(string(r)))
		m = next.(Model)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, next.(Model), cmd)

	if m.editing {
		t.Error("still editing after enter")
	}
	if got := p.Settings().PollInterval; got != settings.DefaultPollInterval {
		t.Errorf("interval = %d, want unchanged", got)
	}
	if len(m.Recent) != 1 || !strings.Contains(m.Recent[0].Message, settings.ErrInvalidPollInterval.Error()) {
		t.Errorf("notices = %+v", m.Recent)
	}
}

func TestNoticesAreCapped(t *testing.T) {
	m, _, _ := newTestModel(t)
	for i := 0; i < maxNotices+3; i++ {
		next, _ := m.Update(NoticeMsg{Level: slog.LevelInfo, Message: "n"})
		m = next.(Model)
	}
	if len(m.Recent) != maxNotices {
		t.Errorf("notices = %d, want %d", len(m.Recent), maxNotices)
	}
}

func TestChannelNotifierDropsWhenFull(t *testing.T) {
	ch := make(ChannelNotifier, 1)
	ch.Notify(syncer.Notice{Message: "first"})
	ch.Notify(syncer.Notice{Message: "second"})
	if got := (<-ch).Message; got != "first" {
		t.Errorf("got %q, want first", got)
	}
	select {
	case n := <-ch:
		t.Errorf("unexpected notice %q", n.Message)
	default:
	}
}

func TestViewRendersPanels(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"STATUS", "NOTICES", "HISTORY", "not selected", "a.js"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	if !strings.Contains(next.(Model).View(), "resize for full view") {
		t.Error("small terminal should render compact view")
	}
}

func TestQuitKey(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.handleKey(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
