package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
	"github.com/lu-zhengda/launchdeck/internal/scancache"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// ---------------------------------------------------------------------------
// Apps JSON types
// ---------------------------------------------------------------------------

type appsJSON struct {
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Bucket    apps.Bucket `json:"bucket"`
	FromCache bool        `json:"from_cache"`
	Fallback  bool        `json:"fallback"`
	Query     string      `json:"query,omitempty"`
	Fuzzy     bool        `json:"fuzzy,omitempty"`
	Total     int         `json:"total"`
	Pinned    []appJSON   `json:"pinned"`
	Groups    []groupJSON `json:"groups"`
}

type groupJSON struct {
	Key   apps.GroupKey `json:"key"`
	Label string        `json:"label"`
	Apps  []appJSON     `json:"apps"`
}

type appJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PackageName    string `json:"package_name"`
	LaunchURI      string `json:"launch_uri,omitempty"`
	ExecutablePath string `json:"executable_path,omitempty"`
	ShortcutPath   string `json:"shortcut_path,omitempty"`
}

func toAppJSON(items []apps.InstalledApp) []appJSON {
	out := make([]appJSON, 0, len(items))
	for _, a := range items {
		out = append(out, appJSON{
			ID:             a.ID,
			Name:           a.Name,
			PackageName:    a.PackageName,
			LaunchURI:      a.LaunchURI,
			ExecutablePath: a.ExecutablePath,
			ShortcutPath:   a.ShortcutPath,
		})
	}
	return out
}

// buildAppsJSON flattens a layout into pinned apps plus the visible groups
// for active.
func buildAppsJSON(res discovery.Result, layout prefs.Layout, active string) appsJSON {
	out := appsJSON{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Bucket:    res.Bucket,
		FromCache: res.FromCache,
		Fallback:  res.Fallback,
		Query:     layout.Query,
		Fuzzy:     layout.Fuzzy,
		Pinned:    toAppJSON(layout.Pinned),
		Groups:    []groupJSON{},
	}
	out.Total = len(layout.Pinned)
	for _, g := range layout.Visible(active) {
		items := layout.Groups[g]
		out.Total += len(items)
		out.Groups = append(out.Groups, groupJSON{Key: g, Label: g.Label(), Apps: toAppJSON(items)})
	}
	return out
}

// ---------------------------------------------------------------------------
// Scan JSON type
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Bucket    apps.Bucket    `json:"bucket"`
	FromCache bool           `json:"from_cache"`
	Fallback  bool           `json:"fallback"`
	Apps      int            `json:"apps"`
	Groups    map[string]int `json:"groups"`
	Elapsed   string         `json:"elapsed"`

	Changes *scancache.DiffResult `json:"changes,omitempty"`
}

func buildScanJSON(res discovery.Result, layout prefs.Layout, elapsed time.Duration, diff *scancache.DiffResult) scanJSON {
	groups := make(map[string]int, len(apps.Groups))
	for _, g := range apps.Groups {
		groups[string(g)] = layout.Counts[string(g)]
	}
	return scanJSON{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Bucket:    res.Bucket,
		FromCache: res.FromCache,
		Fallback:  res.Fallback,
		Apps:      len(res.Apps),
		Groups:    groups,
		Elapsed:   elapsed.Round(time.Millisecond).String(),
		Changes:   diff,
	}
}

// ---------------------------------------------------------------------------
// Launch and stop JSON types
// ---------------------------------------------------------------------------

type launchJSON struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	AppID     string    `json:"app_id"`
	Name      string    `json:"name"`
	Launched  bool      `json:"launched"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type stopJSON struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Requested int       `json:"requested"`
	Failed    int       `json:"failed"`
	FailedIDs []string  `json:"failed_ids"`
	Errors    []string  `json:"errors,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func buildStopJSON(report reconcile.StopReport, message string) stopJSON {
	out := stopJSON{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Requested: report.Requested,
		Failed:    report.Failed,
		FailedIDs: report.FailedIDs,
		Message:   message,
	}
	if out.FailedIDs == nil {
		out.FailedIDs = []string{}
	}
	for _, err := range report.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

// ---------------------------------------------------------------------------
// Status JSON types
// ---------------------------------------------------------------------------

type statusJSON struct {
	Version     string            `json:"version"`
	Timestamp   time.Time         `json:"timestamp"`
	Polling     bool              `json:"polling"`
	Summary     reconcile.Summary `json:"summary"`
	Apps        []statusAppJSON   `json:"apps"`
	Recommended []string          `json:"recommended"`
}

type statusAppJSON struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Status               apps.Status `json:"status"`
	CPUUsage             float64     `json:"cpu_usage"`
	MemoryUsageMB        float64     `json:"memory_usage_mb"`
	ProcessIDs           []int       `json:"process_ids"`
	Stopping             bool        `json:"stopping,omitempty"`
	RecommendedToClose   bool        `json:"recommended_to_close,omitempty"`
	RecommendationReason string      `json:"recommendation_reason,omitempty"`
}

// buildStatusJSON lists entries; with all unset only apps that are not
// stopped are included.
func buildStatusJSON(polling bool, summary reconcile.Summary, entries []launcher.RuntimeEntry, all bool) statusJSON {
	out := statusJSON{
		Version:     version,
		Timestamp:   time.Now().UTC(),
		Polling:     polling,
		Summary:     summary,
		Apps:        []statusAppJSON{},
		Recommended: []string{},
	}
	for _, e := range entries {
		if e.Runtime.RecommendedToClose {
			out.Recommended = append(out.Recommended, e.App.ID)
		}
		if !all && e.Runtime.Status == apps.StatusStopped && !e.Stopping {
			continue
		}
		out.Apps = append(out.Apps, statusAppJSON{
			ID:                   e.App.ID,
			Name:                 e.App.Name,
			Status:               e.Runtime.Status,
			CPUUsage:             e.Runtime.CPUUsage,
			MemoryUsageMB:        e.Runtime.MemoryUsageMB,
			ProcessIDs:           e.Runtime.ProcessIDs,
			Stopping:             e.Stopping,
			RecommendedToClose:   e.Runtime.RecommendedToClose,
			RecommendationReason: e.Runtime.RecommendationReason,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// News JSON type
// ---------------------------------------------------------------------------

type newsJSON struct {
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Category  news.Category `json:"category"`
	Fallback  bool          `json:"fallback"`
	Notice    string        `json:"notice,omitempty"`
	Items     []news.Item   `json:"items"`
}

func buildNewsJSON(res news.Result, notice string) newsJSON {
	items := res.Items
	if items == nil {
		items = []news.Item{}
	}
	return newsJSON{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Category:  res.Category,
		Fallback:  res.Fallback,
		Notice:    notice,
		Items:     items,
	}
}

// ---------------------------------------------------------------------------
// Preference JSON types
// ---------------------------------------------------------------------------

type pinJSON struct {
	Version string `json:"version"`
	AppID   string `json:"app_id"`
	Pinned  bool   `json:"pinned"`
}

type groupChangeJSON struct {
	Version string        `json:"version"`
	AppID   string        `json:"app_id"`
	Group   apps.GroupKey `json:"group"`
	Cleared bool          `json:"cleared,omitempty"`
}

type orderJSON struct {
	Version string   `json:"version"`
	Moved   bool     `json:"moved"`
	Order   []string `json:"order"`
}
