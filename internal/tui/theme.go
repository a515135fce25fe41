package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all TUI colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorSubtle    = lipgloss.Color("236")
	colorText      = lipgloss.Color("252")
	colorWhite     = lipgloss.Color("255")
	colorDangerBg  = lipgloss.Color("52")
)

// ---------------------------------------------------------------------------
// Group colors -- section headers and nav entries.
// ---------------------------------------------------------------------------

var groupColors = map[apps.GroupKey]lipgloss.Color{
	apps.GroupOffice:      lipgloss.Color("75"),
	apps.GroupDevelopment: lipgloss.Color("141"),
	apps.GroupSystem:      lipgloss.Color("214"),
	apps.GroupOther:       lipgloss.Color("108"),
}

// groupColor returns the color of a group. Unknown groups fall back to
// colorPrimary.
func groupColor(g apps.GroupKey) lipgloss.Color {
	if c, ok := groupColors[g]; ok {
		return c
	}
	return colorPrimary
}

// ---------------------------------------------------------------------------
// Runtime badges.
// ---------------------------------------------------------------------------

func statusColor(s apps.Status) lipgloss.Color {
	switch s {
	case apps.StatusRunning:
		return colorSuccess
	case apps.StatusStarting:
		return colorWarning
	default:
		return colorDim
	}
}

// ---------------------------------------------------------------------------
// Bar colors -- used for the scan progress bar.
// ---------------------------------------------------------------------------

var (
	barColorHigh   = lipgloss.Color("82")
	barColorMedium = lipgloss.Color("214")
	barColorLow    = lipgloss.Color("170")
)

// barColor returns a color based on a 0.0-1.0 completion ratio.
//   - >= 0.75 -> high (green)
//   - >= 0.40 -> medium (orange)
//   - < 0.40  -> low (brand)
func barColor(ratio float64) lipgloss.Color {
	switch {
	case ratio >= 0.75:
		return barColorHigh
	case ratio >= 0.40:
		return barColorMedium
	default:
		return barColorLow
	}
}
