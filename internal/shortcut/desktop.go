package shortcut

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DesktopEntry is the [Desktop Entry] group of an XDG .desktop file.
type DesktopEntry struct {
	Type      string
	Name      string
	Exec      string
	TryExec   string
	Icon      string
	Path      string
	NoDisplay bool
	Hidden    bool
}

// DesktopResolver resolves XDG desktop entries. LookPath and IconDirs are
// fields so tests can run without a real $PATH or icon theme.
type DesktopResolver struct {
	LookPath func(file string) (string, error)
	IconDirs []string
}

func NewDesktopResolver() *DesktopResolver {
	return &DesktopResolver{
		LookPath: exec.LookPath,
		IconDirs: []string{
			"/usr/share/icons/hicolor",
			"/usr/share/pixmaps",
			filepath.Join(os.Getenv("HOME"), ".local", "share", "icons"),
		},
	}
}

func (d *DesktopResolver) Resolve(path string) (Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return Target{}, fmt.Errorf("failed to open desktop entry: %w", err)
	}
	defer f.Close()

	entry, err := ParseDesktopEntry(bufio.NewScanner(f))
	if err != nil {
		return Target{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if entry.Type != "" && entry.Type != "Application" {
		return Target{}, ErrNoTarget
	}
	if entry.NoDisplay || entry.Hidden {
		return Target{}, ErrHidden
	}
	if entry.TryExec != "" {
		if _, err := d.lookPath(entry.TryExec); err != nil {
			return Target{}, fmt.Errorf("%w: TryExec %s not found", ErrNoTarget, entry.TryExec)
		}
	}

	argv := SplitExec(entry.Exec)
	if len(argv) == 0 {
		return Target{}, ErrNoTarget
	}
	cmd, err := d.lookPath(argv[0])
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s", ErrNoTarget, argv[0])
	}

	return Target{
		Path:       cmd,
		Args:       strings.Join(argv[1:], " "),
		WorkingDir: entry.Path,
		IconPath:   d.findIcon(entry.Icon),
		Name:       entry.Name,
	}, nil
}

func (d *DesktopResolver) lookPath(cmd string) (string, error) {
	if filepath.IsAbs(cmd) {
		return cmd, nil
	}
	look := d.LookPath
	if look == nil {
		look = exec.LookPath
	}
	return look(cmd)
}

// findIcon maps an Icon= value to a file. Absolute paths are used as is;
// theme names are searched in IconDirs, preferring larger raster sizes.
func (d *DesktopResolver) findIcon(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	for _, dir := range d.IconDirs {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", name+".{png,svg,xpm}"))
		if err != nil || len(matches) == 0 {
			continue
		}
		best := matches[0]
		for _, m := range matches[1:] {
			if iconRank(m) > iconRank(best) {
				best = m
			}
		}
		return best
	}
	return ""
}

// iconRank prefers 48x48-128x128 PNGs, which fit the data URL size cap.
func iconRank(path string) int {
	switch {
	case strings.Contains(path, "128x128"):
		return 4
	case strings.Contains(path, "96x96"), strings.Contains(path, "64x64"):
		return 3
	case strings.Contains(path, "48x48"):
		return 2
	case strings.HasSuffix(path, ".png"):
		return 1
	}
	return 0
}

// ParseDesktopEntry reads key=value pairs from the [Desktop Entry] group.
// Localized keys (Name[de]) and other groups are skipped.
func ParseDesktopEntry(sc *bufio.Scanner) (DesktopEntry, error) {
	var entry DesktopEntry
	inEntry := false
	sawGroup := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEntry = line == "[Desktop Entry]"
			if inEntry {
				sawGroup = true
			}
			continue
		}
		if !inEntry {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Type":
			entry.Type = value
		case "Name":
			entry.Name = value
		case "Exec":
			entry.Exec = value
		case "TryExec":
			entry.TryExec = value
		case "Icon":
			entry.Icon = value
		case "Path":
			entry.Path = value
		case "NoDisplay":
			entry.NoDisplay = value == "true"
		case "Hidden":
			entry.Hidden = value == "true"
		}
	}
	if err := sc.Err(); err != nil {
		return entry, err
	}
	if !sawGroup {
		return entry, fmt.Errorf("missing [Desktop Entry] group")
	}
	return entry, nil
}

// SplitExec tokenizes an Exec value, honoring double quotes and dropping
// field codes such as %f, %U, and %i. "%%" becomes a literal percent.
func SplitExec(execLine string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasTok  bool
	)
	flush := func() {
		if hasTok {
			args = append(args, cur.String())
		}
		cur.Reset()
		hasTok = false
	}

	runes := []rune(execLine)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			hasTok = true
		case c == '\\' && inQuote && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
		case (c == ' ' || c == '\t') && !inQuote:
			flush()
		case c == '%' && i+1 < len(runes):
			i++
			if runes[i] == '%' {
				cur.WriteRune('%')
				hasTok = true
			}
		default:
			cur.WriteRune(c)
			hasTok = true
		}
	}
	flush()
	return args
}
