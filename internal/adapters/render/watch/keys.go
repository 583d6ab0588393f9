package watch

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start   key.Binding
	Stop    key.Binding
	Pause   key.Binding
	Resume  key.Binding
	History key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start run")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop run")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause schedule")),
		Resume:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume schedule")),
		History: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "refresh history")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Pause, k.Resume, k.History, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// sync enables only the bindings the current state allows.
func (k *keyMap) sync(canStart, canStop, canPause, canResume bool) {
	k.Start.SetEnabled(canStart)
	k.Stop.SetEnabled(canStop)
	k.Pause.SetEnabled(canPause)
	k.Resume.SetEnabled(canResume)
}
