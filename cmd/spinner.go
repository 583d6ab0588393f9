package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// remoteStep is one labelled remote call. Steps run in order and the
// spinner label follows the step in progress.
type remoteStep struct {
	label string
	run   func(context.Context) error
}

type remoteStepDoneMsg struct {
	index int
	err   error
}

type remoteCallSpinnerModel struct {
	ctx     context.Context
	spinner spinner.Model
	failed  lipgloss.Style
	steps   []remoteStep
	current int
	err     error
	done    bool
}

func newRemoteCallSpinnerModel(ctx context.Context, steps []remoteStep) remoteCallSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return remoteCallSpinnerModel{
		ctx:     ctx,
		spinner: s,
		failed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		steps:   steps,
	}
}

func (m remoteCallSpinnerModel) Init() tea.Cmd {
	if len(m.steps) == 0 {
		return tea.Quit
	}
	return tea.Batch(m.spinner.Tick, m.runStep(0))
}

func (m remoteCallSpinnerModel) runStep(index int) tea.Cmd {
	step := m.steps[index]
	ctx := m.ctx
	return func() tea.Msg {
		return remoteStepDoneMsg{index: index, err: step.run(ctx)}
	}
}

func (m remoteCallSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case remoteStepDoneMsg:
		if msg.index != m.current {
			return m, nil
		}
		if msg.err != nil || m.current == len(m.steps)-1 {
			m.done = true
			m.err = msg.err
			return m, tea.Quit
		}
		m.current++
		return m, m.runStep(m.current)
	default:
		return m, nil
	}
}

// View clears the line once every step succeeded. A failed step leaves its
// label behind so the error printed after it has context.
func (m remoteCallSpinnerModel) View() string {
	if m.done {
		if m.err == nil {
			return ""
		}
		return m.failed.Render("✗ "+strings.TrimSuffix(m.steps[m.current].label, "...")+" failed") + "\n"
	}
	if len(m.steps) == 0 {
		return ""
	}

	label := m.steps[m.current].label
	if len(m.steps) > 1 {
		label = fmt.Sprintf("[%d/%d] %s", m.current+1, len(m.steps), label)
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), label)
}

// withSpinner runs every step while a spinner is drawn on output and stops
// at the first failing step, whose error it returns.
func withSpinner(ctx context.Context, output io.Writer, steps ...remoteStep) error {
	p := tea.NewProgram(
		newRemoteCallSpinnerModel(ctx, steps),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(remoteCallSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
