package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	item      lipgloss.Style
	detail    lipgloss.Style
	warning   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	key       lipgloss.Style
	meta      lipgloss.Style
	ok        lipgloss.Style
	pending   lipgloss.Style
	failed    lipgloss.Style
	skipped   lipgloss.Style
	noticeOK  lipgloss.Style
	noticeInf lipgloss.Style
	noticeErr lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		item:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		key:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ok:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		skipped:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		noticeOK:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		noticeInf: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		noticeErr: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}
