package apps

import (
	"fmt"
	"math"
	"strings"
)

// InstalledApp is a discovered launchable unit. Values are treated as
// immutable once a discovery result is produced; a rescan replaces the
// whole set.
type InstalledApp struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PackageName    string `json:"packageName"`
	LaunchURI      string `json:"launchUri,omitempty"`
	ExecutablePath string `json:"executablePath,omitempty"`
	ShortcutPath   string `json:"shortcutPath,omitempty"`
	LaunchArgs     string `json:"launchArgs,omitempty"`
	IconDataURL    string `json:"iconDataUrl,omitempty"`
}

// SearchText is the lowercase text used for grouping and query matching.
func (a InstalledApp) SearchText() string {
	return strings.ToLower(a.Name + " " + a.PackageName)
}

// IDs returns the ids of items in order.
func IDs(items []InstalledApp) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Index maps id to app.
func Index(items []InstalledApp) map[string]InstalledApp {
	byID := make(map[string]InstalledApp, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID
}

// EnsureUniqueIDs returns a copy of items in which every id is unique.
// The first holder of an id keeps it; later holders get "-1", "-2", ...
// appended in batch order. Empty ids fall back to the package name, the
// executable path, and finally the position in the batch.
func EnsureUniqueIDs(items []InstalledApp) []InstalledApp {
	counter := make(map[string]int, len(items))
	taken := make(map[string]bool, len(items))
	out := make([]InstalledApp, 0, len(items))

	for i, item := range items {
		base := item.ID
		if base == "" {
			base = item.PackageName
		}
		if base == "" && item.ExecutablePath != "" {
			base = "path:" + item.ExecutablePath
		}
		if base == "" {
			base = fmt.Sprintf("app-%d", i)
		}

		seen := counter[base]
		id := base
		if seen > 0 || taken[base] {
			suffix := max(seen, 1)
			for taken[fmt.Sprintf("%s-%d", base, suffix)] {
				suffix++
			}
			id = fmt.Sprintf("%s-%d", base, suffix)
		}
		counter[base] = seen + 1
		taken[id] = true

		item.ID = id
		out = append(out, item)
	}
	return out
}

// Phase identifies which stage emitted a ScanProgress event.
type Phase string

const (
	PhaseCache Phase = "cache"
	PhaseScan  Phase = "scan"
)

// ScanProgress is an ephemeral progress signal. It is emitted, never stored.
type ScanProgress struct {
	Phase   Phase   `json:"phase"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// NewProgress builds a progress event. Total is floored at 1 and the
// percentage is rounded and clamped to 0-100.
func NewProgress(phase Phase, current, total int, message string) ScanProgress {
	if total < 1 {
		total = 1
	}
	percent := math.Round(float64(current) / float64(total) * 100)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return ScanProgress{
		Phase:   phase,
		Current: current,
		Total:   total,
		Percent: percent,
		Message: message,
	}
}
