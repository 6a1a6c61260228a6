package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Store   key.Binding
	Copy    key.Binding
	Delete  key.Binding
	Search  key.Binding
	Clear   key.Binding
	Rebuild key.Binding
	LLM     key.Binding
	OCR     key.Binding
	Focus   key.Binding
	Quit    key.Binding

	Accept key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Store:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "store")),
		Copy:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "copy")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Clear:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
		Rebuild: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rebuild")),
		LLM:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "llm")),
		OCR:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "panel")),
		Focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Accept: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Store, k.Copy, k.Delete, k.Search, k.Clear, k.LLM, k.OCR, k.Rebuild, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Focus, k.Accept, k.Cancel}}
}
