package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const appName = "launchdeck"

func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// ConfigDir returns ~/.config/launchdeck.
func ConfigDir() string {
	return filepath.Join(HomeDir(), ".config", appName)
}

// DataDir returns ~/.local/share/launchdeck, where the settings database
// and the TUI log live.
func DataDir() string {
	return filepath.Join(HomeDir(), ".local", "share", appName)
}

// ExpandHome expands $VAR references and replaces a leading "~" with the
// home directory.
func ExpandHome(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

// ExpandPaths expands "~" and glob patterns (including "**") into the
// existing paths they match. Patterns without meta characters are kept
// only when the path exists.
func ExpandPaths(patterns []string) []string {
	var results []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		pattern = ExpandHome(pattern)
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				results = append(results, m)
			}
		}
	}
	return results
}

// DefaultMenuDirs returns the program-menu directories for the running OS.
func DefaultMenuDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`$APPDATA\Microsoft\Windows\Start Menu\Programs`,
			`$ProgramData\Microsoft\Windows\Start Menu\Programs`,
		}
	case "darwin":
		return []string{"/Applications", "/System/Applications", "~/Applications"}
	default:
		return []string{
			"/usr/share/applications",
			"/usr/local/share/applications",
			"/var/lib/flatpak/exports/share/applications",
			"~/.local/share/applications",
		}
	}
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists reports whether anything exists at path. Bundles such as .app
// directories count as launch targets.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
