package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/models"
	"github.com/Rorical/RoriAgent/internal/update"
	"github.com/Rorical/RoriAgent/ui/components"
)

type AppModel struct {
	appModel models.AppModel
	deps     update.Deps
}

func (m *AppModel) Init() tea.Cmd {
	return m.appModel.Spinner.Tick
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := update.HandleUpdate(&m.appModel, msg, m.deps)
	return m, cmd
}

func (m *AppModel) View() string {
	am := &m.appModel
	width := am.Width
	if width <= 0 {
		width = 80
	}

	var footer strings.Builder
	bindings := m.deps.Keys.ShortHelp()
	if menu := components.RenderApproval(am.Approval, width); menu != "" {
		footer.WriteString(menu)
		footer.WriteString("\n")
		bindings = m.deps.Keys.ApprovalHelp()
	}
	footer.WriteString(components.RenderInput(am.InputText(), m.placeholder(), width))
	footer.WriteString("\n")
	busy := !am.HostReady || am.Loading || am.Approval.Phase == approval.Processing
	footer.WriteString(components.RenderStatus(am.Status, am.Spinner.View(), busy, bindings, width))

	messages := components.RenderMessages(am.Messages, width)
	if am.Height > 0 {
		messages = lastLines(messages, am.Height-lipgloss.Height(footer.String()))
	}
	return messages + footer.String()
}

func (m *AppModel) placeholder() string {
	switch {
	case m.appModel.Approval.Phase == approval.Pending:
		return " Choose an option above"
	case m.appModel.TaskSent:
		return " Reply to the agent"
	default:
		return " Describe a task"
	}
}

// lastLines keeps the bottom n lines so the newest messages stay visible.
func lastLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "")
}
