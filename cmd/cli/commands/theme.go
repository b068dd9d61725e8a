package commands

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Brand colors
var (
	ColorAccent  = lipgloss.Color("#f59e0b") // Amber accent
	ColorSuccess = lipgloss.Color("#22c55e") // Green
	ColorWarning = lipgloss.Color("#eab308") // Yellow
	ColorError   = lipgloss.Color("#ef4444") // Red
	ColorInfo    = lipgloss.Color("#3b82f6") // Blue
	ColorMuted   = lipgloss.Color("#6b7280") // Gray
	ColorDim     = lipgloss.Color("#4b5563") // Darker gray
	ColorWhite   = lipgloss.Color("#f9fafb") // Off-white
)

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Semantic text styles
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	StyleSubheader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMuted)

	StyleAccent = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleInfo = lipgloss.NewStyle().
			Foreground(ColorInfo)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(14)

	StyleValue = lipgloss.NewStyle().
			Foreground(ColorWhite)
)

// StyleBox frames StatusBox output.
var StyleBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorDim).
	Padding(0, 1)

// Table header style
var (
	StyleTableHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorAccent).
				Padding(0, 1)

	StyleTableRow = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Padding(0, 1)

	StyleTableRowAlt = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Padding(0, 1)
)

// StatusBadge renders a stake or connection status.
func StatusBadge(status string) string {
	switch status {
	case "claimable", "connected", "ok":
		return badge(status, ColorSuccess, true)
	case "failed", "error", "disconnected":
		return badge(status, ColorError, true)
	case "locked", "pending", "warning":
		return badge(status, ColorWarning, true)
	default:
		return badge(status, ColorMuted, false)
	}
}

func badge(text string, bg lipgloss.Color, bold bool) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(bg).
		Padding(0, 1).
		Bold(bold).
		Render(text)
}

// Logo returns the styled dsistake brand text
func Logo() string {
	return StyleAccent.Render("dsistake")
}
