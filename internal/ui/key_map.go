package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	more     key.Binding
	filter   key.Binding
	reload   key.Binding
	remove   key.Binding
	schedule key.Binding
	back     key.Binding
	yes      key.Binding
	no       key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		more:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		remove:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		schedule: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scheduled")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.more, k.filter, k.reload},
		{k.remove, k.schedule, k.back},
		{k.yes, k.no, k.quit},
	}
}
