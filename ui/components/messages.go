package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/Rorical/RoriAgent/internal/models"
	"github.com/Rorical/RoriAgent/ui/styles"
)

// Tool results are long; only their head is shown.
const toolResultLines = 6

func RenderMessages(messages []models.Message, width int) string {
	var b strings.Builder

	userStyle := styles.UserStyle()
	assistantStyle := styles.AssistantStyle()
	programStyle := styles.ProgramStyle()
	toolCallStyle := styles.ToolCallStyle()
	toolResultStyle := styles.ToolResultStyle()

	for _, msg := range messages {
		switch msg.Type {
		case models.User:
			b.WriteString(userStyle.Render("You: "+msg.Content) + "\n\n")
		case models.Assistant:
			b.WriteString(assistantStyle.Render("Assistant: "+msg.Content) + "\n\n")
		case models.Program:
			b.WriteString(programStyle.Render(msg.Content) + "\n\n")
		case models.ToolCall:
			line := "⚙ " + msg.ToolName + " " + oneLine(msg.Content)
			b.WriteString(toolCallStyle.Render(clip(line, width-4)) + "\n")
		case models.ToolResult:
			b.WriteString(toolResultStyle.Render(head(msg.Content, toolResultLines, width-4)) + "\n\n")
		}
	}

	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip truncates s to width cells. A non-positive width leaves s alone.
func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// head keeps the first n lines of s, each clipped to width.
func head(s string, n, width int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	more := len(lines) - n
	if more > 0 {
		lines = lines[:n]
	}
	for i, line := range lines {
		lines[i] = clip(line, width)
	}
	if more > 0 {
		lines = append(lines, "… "+plural(more, "more line"))
	}
	return strings.Join(lines, "\n")
}

// tail keeps the last n lines of s, each clipped to width.
func tail(s string, n, width int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = clip(line, width)
	}
	return strings.Join(lines, "\n")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
