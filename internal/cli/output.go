package cli

import (
	"fmt"
	"strings"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
	"github.com/lu-zhengda/launchdeck/internal/utils"
)

func printAppList(layout prefs.Layout, active string) {
	if len(layout.Pinned) == 0 && layout.Counts[prefs.AllGroups] == 0 {
		if layout.Query != "" {
			fmt.Printf("No apps match %q.\n", layout.Query)
		} else {
			fmt.Println("No apps found.")
		}
		return
	}
	if layout.Fuzzy {
		fmt.Printf("No exact match for %q, showing fuzzy matches.\n", layout.Query)
	}

	if len(layout.Pinned) > 0 {
		fmt.Printf("\nPinned (%d)\n", len(layout.Pinned))
		fmt.Println(strings.Repeat("-", 60))
		for _, a := range layout.Pinned {
			printAppLine(a)
		}
	}

	for _, g := range layout.Visible(active) {
		items := layout.Groups[g]
		fmt.Printf("\n%s (%d)\n", g.Label(), len(items))
		fmt.Println(strings.Repeat("-", 60))
		if len(items) == 0 {
			fmt.Println("  (empty)")
		}
		for _, a := range items {
			printAppLine(a)
		}
	}
}

func printAppLine(a apps.InstalledApp) {
	fmt.Printf("  %-28s %s\n", truncateText(a.Name, 28), truncateText(a.ID, 30))
}

func printRuntime(polling bool, summary reconcile.Summary, entries []launcher.RuntimeEntry, all bool) {
	if !polling {
		fmt.Println("Runtime status is only available for desktop apps.")
		return
	}

	fmt.Printf("Running: %d  Starting: %d  Stopped: %d", summary.Running, summary.Starting, summary.Stopped)
	if summary.Recommended > 0 {
		fmt.Printf("  Recommended to close: %d", summary.Recommended)
	}
	fmt.Println()

	shown := 0
	for _, e := range entries {
		if !all && e.Runtime.Status == apps.StatusStopped && !e.Stopping {
			continue
		}
		if shown == 0 {
			fmt.Printf("\n  %-28s %-9s %7s %10s\n", "APP", "STATUS", "CPU", "MEMORY")
			fmt.Println("  " + strings.Repeat("-", 58))
		}
		shown++
		status := string(e.Runtime.Status)
		if e.Stopping {
			status = "stopping"
		}
		line := fmt.Sprintf("  %-28s %-9s %7s %10s", truncateText(e.App.Name, 28), status,
			utils.FormatPercent(e.Runtime.CPUUsage), utils.FormatMemoryMB(e.Runtime.MemoryUsageMB))
		if e.Runtime.RecommendedToClose {
			line += "  ! " + e.Runtime.RecommendationReason
		}
		fmt.Println(line)
	}
	if shown == 0 {
		fmt.Println("No apps are running.")
	}
}

func printNews(res news.Result, notice string) {
	fmt.Printf("%s headlines", titleCase(string(res.Category)))
	if res.Fallback {
		fmt.Print(" (offline)")
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	if notice != "" {
		fmt.Println(notice)
		return
	}
	for _, item := range res.Items {
		fmt.Printf("  %s\n", item.Title)
		meta := item.Source
		if item.PublishedAt != "" {
			meta += " · " + item.PublishedAt
		}
		fmt.Printf("    %s\n", meta)
	}
}

func printStopReport(report reconcile.StopReport, title, message string) {
	stopped := report.Requested - report.Failed
	fmt.Printf("Stopped %d of %d app(s).\n", stopped, report.Requested)
	if title != "" {
		fmt.Printf("%s: %s\n", title, message)
		for i, id := range report.FailedIDs {
			fmt.Printf("  %s: %v\n", id, report.Errors[i])
		}
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncateText shortens s to maxLen runes, marking the cut with "...".
func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	fmt.Scanln(&response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}
