// Package watch is the interactive parser screen: live scheduler state, the
// recent run history and single-key controls.
package watch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/tgpanel/internal/adapters/render/status"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshEvery = 250 * time.Millisecond

type Scheduler interface {
	State() domain.SchedulerState
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

type History interface {
	Snapshot() application.HistorySnapshot
	Refresh(ctx context.Context) error
}

type Options struct {
	Input    io.Reader
	Output   io.Writer
	Location *time.Location
	Now      func() time.Time
	// AltScreen is off in tests.
	AltScreen bool
}

type refreshMsg struct{}

type actionDoneMsg struct {
	action string
	err    error
}

type Model struct {
	ctx       context.Context
	scheduler Scheduler
	history   History
	location  *time.Location
	now       func() time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	errText lipgloss.Style

	state    domain.SchedulerState
	snap     application.HistorySnapshot
	busy     string
	lastErr  string
	quitting bool
}

func NewModel(ctx context.Context, scheduler Scheduler, history History, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := Model{
		ctx:       ctx,
		scheduler: scheduler,
		history:   history,
		location:  opts.Location,
		now:       opts.Now,
		keys:      newKeyMap(),
		help:      help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
	m.pull()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case refreshMsg:
		m.pull()
		return m, tick()
	case actionDoneMsg:
		m.busy = ""
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
		m.pull()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Start):
		return m.run("start run", m.scheduler.Start)
	case key.Matches(msg, m.keys.Stop):
		return m.run("stop run", m.scheduler.Stop)
	case key.Matches(msg, m.keys.Pause):
		return m.run("pause schedule", m.scheduler.Pause)
	case key.Matches(msg, m.keys.Resume):
		return m.run("resume schedule", m.scheduler.Resume)
	case key.Matches(msg, m.keys.History):
		return m.run("refresh history", m.history.Refresh)
	default:
		return m, nil
	}
}

func (m Model) run(action string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = action
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m *Model) pull() {
	m.state = m.scheduler.State()
	m.snap = m.history.Snapshot()
	m.keys.sync(m.state.CanStart(), m.state.CanStop(), m.state.CanPause(), m.state.CanResume())
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	opts := status.RenderOptions{Now: m.now(), Location: m.location}
	var b strings.Builder
	b.WriteString(status.SchedulerView(m.state, opts))
	b.WriteString("\n\n")
	b.WriteString(status.HistoryView(m.snap, opts))
	b.WriteString("\n\n")

	if m.snap.Err != "" {
		b.WriteString(m.errText.Render("history refresh failed: "+m.snap.Err) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString(m.errText.Render(m.lastErr) + "\n")
	}
	if m.busy != "" {
		b.WriteString(fmt.Sprintf("%s %s...\n", m.spinner.View(), m.busy))
	}
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Run blocks until the operator quits or ctx ends. The caller owns the
// controllers and closes them afterwards.
func Run(ctx context.Context, scheduler Scheduler, history History, opts Options) error {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	_, err := tea.NewProgram(NewModel(ctx, scheduler, history, opts), programOpts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
