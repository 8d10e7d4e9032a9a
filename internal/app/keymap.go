package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings. Sort shortcuts mirror the column
// they order by.
type KeyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding

	SortName     key.Binding
	SortAccessed key.Binding
	SortCommit   key.Binding

	Filter key.Binding
	Errors key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/↑", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/↓", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open in lazygit")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

		SortName:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "sort by name")),
		SortAccessed: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "sort by accessed")),
		SortCommit:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "sort by commit")),

		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Errors: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "errors")),
	}
}
