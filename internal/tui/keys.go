package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the chat key bindings.
type keyMap struct {
	Send       key.Binding
	Stop       key.Binding
	Regenerate key.Binding
	Continue   key.Binding
	Edit       key.Binding
	Markdown   key.Binding
	NewChat    key.Binding
	Bottom     key.Binding
	Page       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "regenerate"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "continue"),
		),
		Edit: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "edit prompt"),
		),
		Markdown: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "markdown"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "latest"),
		),
		Page: key.NewBinding(
			key.WithKeys("pgup", "pgdown", "home"),
			key.WithHelp("pgup/pgdn", "scroll"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// hints returns the bindings worth showing in the footer right now.
func (k keyMap) hints(streaming bool) []key.Binding {
	if streaming {
		return []key.Binding{k.Stop, k.Page, k.Bottom, k.Quit}
	}
	return []key.Binding{k.Send, k.Regenerate, k.Edit, k.NewChat, k.Page, k.Quit}
}
