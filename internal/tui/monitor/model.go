package monitor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncer"
)

// Syncer runs cycles and reports ticker state. *syncer.Synchronizer implements it.
type Syncer interface {
	CheckForUpdates(ctx context.Context) (*syncer.Result, error)
	Running() bool
	Interval() time.Duration
}

// Settings edits the persisted settings. *panel.Provider implements it.
type Settings interface {
	Settings() settings.Settings
	SetEnabled(enabled bool) error
	SetPollInterval(raw string) error
}

// History returns recent file outcomes. *history.DB implements it.
type History interface {
	Tail(limit int) ([]history.Entry, error)
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 12

const (
	maxNotices   = 5
	historyLimit = 50
)

// Model is the Bubble Tea model for the sync monitor.
type Model struct {
	Sync     Syncer
	Panel    Settings
	History  History
	Notices  <-chan syncer.Notice
	Keys     KeyMap
	ctx      context.Context
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	editing  bool

	// Window dimensions
	Width  int
	Height int

	// Data
	Current    settings.Settings
	Running    bool
	Interval   time.Duration
	Entries    []history.Entry
	Recent     []syncer.Notice
	LastResult *syncer.Result

	// UI state
	Syncing     bool
	ShowHelp    bool
	LastRefresh time.Time
	Err         error

	RefreshInterval time.Duration
}

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	Settings  settings.Settings
	Running   bool
	Interval  time.Duration
	Entries   []history.Entry
	Err       error
	Timestamp time.Time
}

// SyncDoneMsg carries the outcome of a manual sync.
type SyncDoneMsg struct {
	Result *syncer.Result
	Err    error
}

// NoticeMsg carries a notice from a running cycle.
type NoticeMsg syncer.Notice

// settingsSavedMsg reports the outcome of a settings change.
type settingsSavedMsg struct{ err error }

// NewModel creates a new monitor model. notices may be nil.
func NewModel(ctx context.Context, s Syncer, p Settings, h History, notices <-chan syncer.Notice, interval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "milliseconds"
	ti.CharLimit = 9
	ti.Prompt = "Poll interval (ms): "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = syncingStyle

	return Model{
		Sync:            s,
		Panel:           p,
		History:         h,
		Notices:         notices,
		Keys:            DefaultKeyMap(),
		ctx:             ctx,
		help:            help.New(),
		spinner:         sp,
		input:           ti,
		RefreshInterval: interval,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
		m.waitForNotice(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Current = msg.Settings
		m.Running = msg.Running
		m.Interval = msg.Interval
		m.Entries = msg.Entries
		m.Err = msg.Err
		m.LastRefresh = msg.Timestamp
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		if msg.Result != nil {
			m.LastResult = msg.Result
		}
		if msg.Err != nil {
			m.pushNotice(syncer.Notice{Level: slog.LevelWarn, Message: "Sync: " + msg.Err.Error()})
		}
		return m, m.fetchData()

	case NoticeMsg:
		m.pushNotice(syncer.Notice(msg))
		return m, m.waitForNotice()

	case settingsSavedMsg:
		if msg.err != nil {
			m.pushNotice(syncer.Notice{Level: slog.LevelWarn, Message: msg.err.Error()})
		}
		return m, m.fetchData()

	case spinner.TickMsg:
		if !m.Syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Sync):
		if m.Syncing {
			return m, nil
		}
		m.Syncing = true
		return m, tea.Batch(m.runSync(), m.spinner.Tick)

	case key.Matches(msg, m.Keys.Toggle):
		enabled := !m.Current.Enabled
		return m, m.saveSetting(func(p Settings) error { return p.SetEnabled(enabled) })

	case key.Matches(msg, m.Keys.Slower):
		next := max(m.Current.PollInterval*2, 1)
		return m, m.saveInterval(next)

	case key.Matches(msg, m.Keys.Faster):
		next := max(m.Current.PollInterval/2, 1)
		return m, m.saveInterval(next)

	case key.Matches(msg, m.Keys.Edit):
		m.editing = true
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.Keys.Refresh):
		return m, m.fetchData()

	case key.Matches(msg, m.Keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleEditKey routes keys to the interval input.
func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()
		raw := m.input.Value()
		return m, m.saveSetting(func(p Settings) error { return p.SetPollInterval(raw) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m *Model) pushNotice(n syncer.Notice) {
	m.Recent = append(m.Recent, n)
	if len(m.Recent) > maxNotices {
		m.Recent = m.Recent[len(m.Recent)-maxNotices:]
	}
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that reads settings, ticker state and history.
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		msg := RefreshDataMsg{
			Settings:  m.Panel.Settings(),
			Running:   m.Sync.Running(),
			Interval:  m.Sync.Interval(),
			Timestamp: time.Now(),
		}
		if m.History != nil {
			msg.Entries, msg.Err = m.History.Tail(historyLimit)
		}
		return msg
	}
}

func (m Model) runSync() tea.Cmd {
	return func() tea.Msg {
		res, err := m.Sync.CheckForUpdates(m.ctx)
		return SyncDoneMsg{Result: res, Err: err}
	}
}

func (m Model) saveSetting(fn func(Settings) error) tea.Cmd {
	return func() tea.Msg {
		return settingsSavedMsg{err: fn(m.Panel)}
	}
}

func (m Model) saveInterval(ms int) tea.Cmd {
	return m.saveSetting(func(p Settings) error { return p.SetPollInterval(strconv.Itoa(ms)) })
}

// waitForNotice blocks on the notice channel and delivers one NoticeMsg.
func (m Model) waitForNotice() tea.Cmd {
	if m.Notices == nil {
		return nil
	}
	ch := m.Notices
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg(n)
	}
}

// ChannelNotifier forwards notices to a channel without blocking; notices are
// dropped when the buffer is full. It implements syncer.Notifier.
type ChannelNotifier chan syncer.Notice

// Notify implements syncer.Notifier.
func (c ChannelNotifier) Notify(n syncer.Notice) {
	select {
	case c <- n:
	default:
	}
}
