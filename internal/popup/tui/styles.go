package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ED1B2F")).MarginBottom(1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ED1B2F")).Bold(true)
	checkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#767676")).Padding(0, 1)
)
