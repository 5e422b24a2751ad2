package models

import (
	"github.com/charmbracelet/bubbles/spinner"

	"github.com/Rorical/RoriAgent/internal/approval"
)

// AppModel represents the UI state - only local UI concerns
type AppModel struct {
	Messages []Message // Conversation as last pushed by the host
	Input    []rune    // Text being edited
	Status   string
	Loading  bool // A turn is running on the host
	Width    int
	Height   int

	HostReady bool
	// TaskSent is set once the first message of the session went out;
	// later messages continue the task.
	TaskSent bool
	Approval approval.Snapshot
	Spinner  spinner.Model
}

// InputText returns the edited text.
func (m *AppModel) InputText() string {
	return string(m.Input)
}
