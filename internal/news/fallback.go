package news

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed fallback.json
var fallbackData []byte

var bundled []Item

func init() {
	if err := json.Unmarshal(fallbackData, &bundled); err != nil {
		panic(fmt.Sprintf("news: invalid bundled dataset: %v", err))
	}
}

// Bundled returns the bundled headlines for category, in dataset order.
func Bundled(category Category) []Item {
	out := []Item{}
	for _, item := range bundled {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}
