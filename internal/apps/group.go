package apps

import (
	"fmt"
	"strings"
)

// GroupKey is the closed set of launcher categories.
type GroupKey string

const (
	GroupOffice      GroupKey = "office"
	GroupDevelopment GroupKey = "development"
	GroupSystem      GroupKey = "system"
	GroupOther       GroupKey = "other"
)

// Groups lists every group in display order.
var Groups = []GroupKey{GroupOffice, GroupDevelopment, GroupSystem, GroupOther}

// Keyword sets are checked in this order; the first set with a hit wins.
// Changing a set or the order changes classification.
var groupKeywords = []struct {
	group    GroupKey
	keywords []string
}{
	{GroupOffice, []string{"excel", "word", "ppt", "wechat", "mail", "doc"}},
	{GroupDevelopment, []string{"code", "studio", "git", "node", "python", "terminal"}},
	{GroupSystem, []string{"settings", "system", "control", "cmd", "powershell"}},
}

// DetectGroup classifies app by keyword match over its lowercase name and
// package name. Every app maps to exactly one group.
func DetectGroup(app InstalledApp) GroupKey {
	text := app.SearchText()
	for _, set := range groupKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.group
			}
		}
	}
	return GroupOther
}

// ParseGroup validates a group name.
func ParseGroup(s string) (GroupKey, error) {
	g := GroupKey(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Groups {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown group %q (use office, development, system, or other)", s)
}

// Label returns the display label for the group.
func (g GroupKey) Label() string {
	switch g {
	case GroupOffice:
		return "Office"
	case GroupDevelopment:
		return "Development"
	case GroupSystem:
		return "System"
	default:
		return "Other"
	}
}
