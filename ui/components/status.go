package components

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/x/ansi"

	"github.com/Rorical/RoriAgent/ui/styles"
)

// RenderStatus draws the status line. spinner is prefixed while busy and
// the key help fills the rest of the line when it fits.
func RenderStatus(status string, spinner string, busy bool, bindings []key.Binding, width int) string {
	statusStyle := styles.StatusStyle(width)

	statusContent := status
	if busy {
		statusContent = spinner + " " + status
	}
	if len(bindings) > 0 {
		h := help.New()
		hints := h.ShortHelpView(bindings)
		if width <= 0 || ansi.StringWidth(statusContent)+ansi.StringWidth(hints)+6 <= width {
			statusContent += "  " + hints
		}
	}
	return statusStyle.Render(clip(statusContent, width-2))
}
