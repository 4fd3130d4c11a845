package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle uses ANSI 6 (Cyan) for headings, readable on light and
	// dark terminals alike.
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for usage lines and arguments
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) keeps descriptions quiet
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// ToolStyle ANSI 8 for tool-activity lines in the chat view
	ToolStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
