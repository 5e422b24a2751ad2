package styles

import "github.com/charmbracelet/lipgloss"

func InputStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(max(width-4, 10))
}

func StatusStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Background(lipgloss.Color("235")).
		Padding(0, 1).
		Width(width)
}

func UserStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color("39")).
		Padding(0, 1).
		MarginLeft(2)
}

func AssistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color("214")).
		Padding(0, 1).
		MarginLeft(2)
}

func ProgramStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("141")).
		Bold(true).
		Padding(0, 2)
}

func ToolCallStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("166")).
		Padding(0, 1).
		MarginLeft(2)
}

func ToolResultStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("72")).
		Padding(0, 1).
		MarginLeft(2)
}

// ApprovalStyle frames the approval menu.
func ApprovalStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		Padding(0, 1).
		Width(max(width-4, 10))
}

func PayloadStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))
}

var optionColors = map[string]lipgloss.Color{
	"green": lipgloss.Color("42"),
	"red":   lipgloss.Color("203"),
	"cyan":  lipgloss.Color("45"),
}

// OptionStyle colors a menu option by its color name. The selected
// option is drawn reversed.
func OptionStyle(color string, selected bool) lipgloss.Style {
	s := lipgloss.NewStyle()
	if c, ok := optionColors[color]; ok {
		s = s.Foreground(c)
	}
	if selected {
		s = s.Bold(true).Reverse(true)
	}
	return s
}

func DimStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
}

func BoldStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true)
}
