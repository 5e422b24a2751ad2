package update

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings matched against decoded key events. Names
// follow terminal.KeyEvent.String, e.g. "shift+return".
type KeyMap struct {
	Quit      key.Binding
	Submit    key.Binding
	Newline   key.Binding
	Backspace key.Binding
	ClearLine key.Binding
	Cancel    key.Binding
	Up        key.Binding
	Down      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("C-c", "quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("return", "enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("shift+return", "alt+return", "shift+enter", "alt+enter"),
			key.WithHelp("S-enter", "newline"),
		),
		Backspace: key.NewBinding(
			key.WithKeys("backspace", "alt+backspace"),
		),
		ClearLine: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("C-u", "clear"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("escape"),
			key.WithHelp("esc", "stop"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "shift+tab"),
			key.WithHelp("↑", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "tab"),
			key.WithHelp("↓", "next"),
		),
	}
}

// ShortHelp implements help.KeyMap for the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Newline, k.Cancel, k.Quit}
}

// ApprovalHelp is shown while the approval menu is open.
func (k KeyMap) ApprovalHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Submit, k.Cancel}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), k.ApprovalHelp()}
}
