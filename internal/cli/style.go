package cli

import "github.com/charmbracelet/lipgloss"

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	kindStyles   = map[string]lipgloss.Style{
		"video":    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		"audio":    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"subtitle": lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
)
