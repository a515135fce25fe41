package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
)

// navEntries lists the sidebar entries in order.
func navEntries() []string {
	out := []string{prefs.AllGroups}
	for _, g := range apps.Groups {
		out = append(out, string(g))
	}
	return out
}

// cycleNav returns the entry step places after current.
func cycleNav(current string, step int) string {
	entries := navEntries()
	idx := 0
	for i, e := range entries {
		if e == current {
			idx = i
			break
		}
	}
	n := len(entries)
	return entries[((idx+step)%n+n)%n]
}

func navLabel(entry string) string {
	if entry == prefs.AllGroups {
		return "All"
	}
	return apps.GroupKey(entry).Label()
}

// moveCursor moves within a flat list laid out in rows of columns.
// Moves off the edge leave the cursor where it is.
func moveCursor(cursor, total, columns, dRow, dCol int) int {
	if total == 0 {
		return 0
	}
	if columns < 1 {
		columns = 1
	}
	next := cursor + dRow*columns + dCol
	if dCol != 0 && (next < 0 || next >= total) {
		return cursor
	}
	if next < 0 || next >= total {
		if dRow > 0 && cursor/columns < (total-1)/columns {
			return total - 1
		}
		return cursor
	}
	return next
}

func clampCursor(cursor, total int) int {
	if cursor >= total {
		cursor = total - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

// badge is the runtime marker drawn in a cell.
func badge(stat apps.RuntimeStat, stopping bool) string {
	var mark string
	switch {
	case stopping:
		mark = "■"
	case stat.Status == apps.StatusRunning:
		mark = "●"
	case stat.Status == apps.StatusStarting:
		mark = "◐"
	default:
		mark = "○"
	}
	s := lipgloss.NewStyle().Foreground(statusColor(stat.Status)).Render(mark)
	if stat.RecommendedToClose {
		s += lipgloss.NewStyle().Foreground(colorDanger).Render("!")
	}
	return s
}

type cellInfo struct {
	app      apps.InstalledApp
	stat     apps.RuntimeStat
	stopping bool
	pinned   bool
	selected bool
	pending  bool
}

// renderCell draws one app tile of the given inner width.
func renderCell(c cellInfo, width int, large bool) string {
	name := c.app.Name
	if c.pinned {
		name = "★ " + name
	}
	line := truncate(name, width-2) + " " + badge(c.stat, c.stopping)

	style := cellStyle
	if c.selected {
		style = cellSelectedStyle
	}
	if c.pending {
		style = style.BorderForeground(colorWarning)
	}
	if large {
		style = style.Bold(true).Padding(1, 2)
	}
	body := line
	if c.stat.Status == apps.StatusRunning && c.stat.MemoryUsageMB > 0 {
		body += "\n" + dimStyle.Render(truncate(fmt.Sprintf("%.0f%% %.0fMB", c.stat.CPUUsage, c.stat.MemoryUsageMB), width))
	}
	return style.Width(width).Render(body)
}

// renderRows lays cells out in rows of columns.
func renderRows(cells []string, columns int) string {
	if columns < 1 {
		columns = 1
	}
	var rows []string
	for start := 0; start < len(cells); start += columns {
		end := min(start+columns, len(cells))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells[start:end]...))
	}
	return strings.Join(rows, "\n")
}

// renderNav draws the group sidebar.
func renderNav(layout prefs.Layout, active string, collapsed bool) string {
	var b strings.Builder
	for _, entry := range navEntries() {
		label := navLabel(entry)
		if collapsed {
			label = label[:1]
		} else {
			label = fmt.Sprintf("%-12s %3d", label, layout.Counts[entry])
		}
		style := dimStyle
		if entry != prefs.AllGroups {
			style = lipgloss.NewStyle().Foreground(groupColor(apps.GroupKey(entry)))
		}
		if entry == active {
			b.WriteString(selectedStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(style.Render("  "+label) + "\n")
		}
	}
	return navStyle.Render(strings.TrimRight(b.String(), "\n"))
}
