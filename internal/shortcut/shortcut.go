// Package shortcut turns program-menu entries (.lnk, .desktop, .app) into
// launch targets.
package shortcut

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned for files no resolver understands.
	ErrUnsupported = errors.New("shortcut: unsupported file type")
	// ErrHidden marks entries that exist but should not be listed, such as
	// desktop entries with NoDisplay=true.
	ErrHidden = errors.New("shortcut: entry is hidden")
	// ErrNoTarget marks entries that resolve to nothing launchable.
	ErrNoTarget = errors.New("shortcut: no launch target")
)

// Target is what a shortcut points at.
type Target struct {
	// Path is the executable, or the bundle directory for .app entries.
	Path       string
	Args       string
	WorkingDir string
	// IconPath is a file on disk when one could be located.
	IconPath string
	// Name is the display name carried by the entry itself, if any.
	Name string
}

// Resolver reads one shortcut file.
type Resolver interface {
	Resolve(path string) (Target, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(path string) (Target, error)

func (f ResolverFunc) Resolve(path string) (Target, error) { return f(path) }

// Multi dispatches to a resolver by lowercase file extension.
type Multi map[string]Resolver

// Default returns the resolver set for every supported format.
func Default() Multi {
	return Multi{
		".lnk":     ResolverFunc(ResolveLnk),
		".desktop": NewDesktopResolver(),
		".app":     ResolverFunc(ResolveBundle),
	}
}

func (m Multi) Resolve(path string) (Target, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r, ok := m[ext]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	t, err := r.Resolve(path)
	if err != nil {
		return Target{}, err
	}
	if t.Path == "" {
		return Target{}, ErrNoTarget
	}
	return t, nil
}

// DisplayName is the name shown for a shortcut: the entry's own name, else
// the shortcut file name without extension.
func DisplayName(shortcutPath string, t Target) string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	base := filepath.Base(shortcutPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
