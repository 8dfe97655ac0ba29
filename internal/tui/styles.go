package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/formrelay/internal/ui"
)

// AppName is shown in the title bar of the live view
const AppName = "FORMRELAY"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = ui.MinTerminalWidth
	MaxContentWidth  = ui.MaxContentWidth
	CountdownWidth   = 40
)

// Common styles
var (
	// Title style - bold, purple
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true).
			MarginBottom(1)

	// Subtitle style
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	// Spinner style
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	// Help text style
	HelpStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Padding(1, 0, 0, 0)

	// Message text shown next to a state
	MessageStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor)

	// Card around the region panel
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor).
			Padding(0, 1)
)
