package components

import (
	"github.com/Rorical/RoriAgent/ui/styles"
)

const cursor = "█"

// RenderInput draws the edit box. placeholder is shown dimmed while the
// box is empty.
func RenderInput(input string, placeholder string, width int) string {
	inputStyle := styles.InputStyle(width)
	if input == "" {
		return inputStyle.Render(cursor + styles.DimStyle().Render(placeholder))
	}
	return inputStyle.Render(input + cursor)
}
