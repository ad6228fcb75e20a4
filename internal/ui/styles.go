package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box drawing characters
const (
	TopLeft     = "╭"
	TopRight    = "╮"
	BottomLeft  = "╰"
	BottomRight = "╯"
	Horizontal  = "─"
	Vertical    = "│"
	LeftT       = "├"
	RightT      = "┤"
	TopT        = "┬"
	BottomT     = "┴"
	Cross       = "┼"
)

// Color palette
const (
	ColorBorder     = "240"
	ColorHeader     = "252"
	ColorID         = "214"
	ColorName       = "81"
	ColorEndpoint   = "252"
	ColorEngine     = "141"
	ColorClass      = "252"
	ColorAZ         = "252"
	ColorAvailable  = "82"
	ColorStopped    = "245"
	ColorTransition = "214"
	ColorFailed     = "196"
	ColorMuted      = "240"
	ColorHint       = "245"
)

// Shared styles
var (
	BorderStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBorder))
	HeaderStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorHeader))
	IDStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorID))
	NameStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorName))
	EndpointStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorEndpoint))
	EngineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorEngine))
	ClassStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorClass))
	AZStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAZ))
	AvailableStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAvailable))
	StoppedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorStopped))
	TransitionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTransition))
	FailedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorFailed))
	MutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	HintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorHint))
)

// stateIndicator returns the glyph shown next to an instance state
func stateIndicator(state string) string {
	switch state {
	case "available":
		return "●"
	case "starting", "stopping", "rebooting", "modifying", "backing-up":
		return "◐"
	case "failed", "incompatible-parameters", "storage-full":
		return "✗"
	default:
		return "○"
	}
}

func stateStyle(state string) lipgloss.Style {
	switch stateIndicator(state) {
	case "●":
		return AvailableStyle
	case "◐":
		return TransitionStyle
	case "✗":
		return FailedStyle
	default:
		return StoppedStyle
	}
}

// padRight pads a string to the specified display width using runewidth
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-sw)
}

func formatOptional(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
