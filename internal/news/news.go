// Package news serves hot headlines per category, falling back to a
// bundled dataset whenever the live source fails or has nothing.
package news

import (
	"context"
	"fmt"
	"strings"
)

// Category is a news panel tab.
type Category string

const (
	National   Category = "national"
	Technology Category = "technology"
	Lifestyle  Category = "lifestyle"
)

// Categories lists the tabs in display order.
var Categories = []Category{National, Technology, Lifestyle}

// ParseCategory accepts a category name, case-insensitively. Empty means
// National.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return National, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown news category %q (want national, technology or lifestyle)", s)
}

// Item is one headline.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"publishedAt"`
	Category    Category `json:"category"`
	URL         string   `json:"url,omitempty"`
}

// Source fetches live headlines.
type Source interface {
	Fetch(ctx context.Context, category Category) ([]Item, error)
}
