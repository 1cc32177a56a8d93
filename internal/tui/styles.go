package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorRed    = lipgloss.Color("#FF0000")
	ColorGreen  = lipgloss.Color("#00FF00")
	ColorYellow = lipgloss.Color("#FFFF00")
	ColorCyan   = lipgloss.Color("#00FFFF")
	ColorGray   = lipgloss.Color("#666666")
	ColorWhite  = lipgloss.Color("#FFFFFF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	OpenDotStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	BusyDotStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	ErrorDotStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	UserLabelStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	AssistantLabelStyle = lipgloss.NewStyle().
				Foreground(ColorCyan).
				Bold(true)

	SystemLineStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	StrongStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)
