package prefs

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

// AllGroups is the nav entry that shows every non-empty group.
const AllGroups = "all"

// Layout is what the grid renders: pinned apps first, then each group's
// unpinned apps in merged order.
type Layout struct {
	Pinned []apps.InstalledApp                  `json:"pinned"`
	Groups map[apps.GroupKey][]apps.InstalledApp `json:"groups"`
	Counts map[string]int                        `json:"counts"`
	Query  string                                `json:"query,omitempty"`
	Fuzzy  bool                                  `json:"fuzzy,omitempty"`
}

// Visible returns the groups to draw for the active nav entry. "all" (or
// empty) lists the non-empty groups in display order.
func (l Layout) Visible(active string) []apps.GroupKey {
	if active != "" && active != AllGroups {
		return []apps.GroupKey{apps.GroupKey(active)}
	}
	var out []apps.GroupKey
	for _, g := range apps.Groups {
		if len(l.Groups[g]) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Ordered flattens the layout into the order cells appear on screen.
func (l Layout) Ordered(active string) []apps.InstalledApp {
	out := append([]apps.InstalledApp(nil), l.Pinned...)
	for _, g := range l.Visible(active) {
		out = append(out, l.Groups[g]...)
	}
	return out
}

// Layout projects items through the current order, pins and group
// overrides. query filters by case-insensitive substring over name and
// package name; when nothing matches that way, a fuzzy match is used.
func (s *Store) Layout(items []apps.InstalledApp, query string) Layout {
	st := s.Snapshot()
	byID := apps.Index(items)

	ordered := make([]apps.InstalledApp, 0, len(items))
	placed := make(map[string]bool, len(items))
	for _, id := range st.Order {
		if app, ok := byID[id]; ok && !placed[id] {
			placed[id] = true
			ordered = append(ordered, app)
		}
	}
	for _, app := range items {
		if !placed[app.ID] {
			placed[app.ID] = true
			ordered = append(ordered, app)
		}
	}

	keyword := strings.ToLower(strings.TrimSpace(query))
	match, fuzzy := matcher(items, keyword)

	pinnedSet := make(map[string]bool, len(st.Pinned))
	layout := Layout{
		Groups: make(map[apps.GroupKey][]apps.InstalledApp, len(apps.Groups)),
		Counts: make(map[string]int, len(apps.Groups)+1),
		Query:  keyword,
		Fuzzy:  fuzzy,
	}
	for _, id := range st.Pinned {
		app, ok := byID[id]
		if !ok {
			continue
		}
		pinnedSet[id] = true
		if match(app) {
			layout.Pinned = append(layout.Pinned, app)
		}
	}

	for _, g := range apps.Groups {
		layout.Groups[g] = []apps.InstalledApp{}
	}
	for _, app := range ordered {
		if pinnedSet[app.ID] || !match(app) {
			continue
		}
		g := resolveGroup(st.Groups, app)
		layout.Groups[g] = append(layout.Groups[g], app)
	}

	total := 0
	for _, g := range apps.Groups {
		n := len(layout.Groups[g])
		layout.Counts[string(g)] = n
		total += n
	}
	layout.Counts[AllGroups] = total
	return layout
}

// matcher returns the filter for keyword and whether it fell back to
// fuzzy matching.
func matcher(items []apps.InstalledApp, keyword string) (func(apps.InstalledApp) bool, bool) {
	if keyword == "" {
		return func(apps.InstalledApp) bool { return true }, false
	}
	substring := func(app apps.InstalledApp) bool {
		return strings.Contains(app.SearchText(), keyword)
	}
	for _, app := range items {
		if substring(app) {
			return substring, false
		}
	}

	matched := FuzzyFilter(items, keyword)
	set := make(map[string]bool, len(matched))
	for _, app := range matched {
		set[app.ID] = true
	}
	return func(app apps.InstalledApp) bool { return set[app.ID] }, true
}

// FuzzyFilter keeps the items whose name or package name fuzzily matches
// pattern, preserving input order.
func FuzzyFilter(items []apps.InstalledApp, pattern string) []apps.InstalledApp {
	runes := []rune(strings.ToLower(pattern))
	if len(runes) == 0 {
		return items
	}
	slab := util.MakeSlab(100*1024, 2048)
	var out []apps.InstalledApp
	for _, app := range items {
		chars := util.ToChars([]byte(app.SearchText()))
		res, _ := algo.FuzzyMatchV2(false, true, true, &chars, runes, false, slab)
		if res.Start >= 0 && res.Score > 0 {
			out = append(out, app)
		}
	}
	return out
}
