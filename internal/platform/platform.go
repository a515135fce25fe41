// Package platform selects how apps are enumerated and launched on the
// host: a desktop shell, a mobile package manager, or a browser-style
// fallback that can only open URIs.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
)

// ErrUnsupported is returned by operations the capability cannot perform.
var ErrUnsupported = errors.New("platform: operation not supported")

// Kind names a capability variant.
type Kind string

const (
	KindDesktop Kind = "desktop"
	KindMobile  Kind = "mobile"
	KindBrowser Kind = "browser"
)

// Capability is selected once at startup and injected wherever behavior
// differs per platform.
type Capability interface {
	Kind() Kind
	Bucket() apps.Bucket
	Launch(ctx context.Context, app apps.InstalledApp) error
}

// Runner executes external commands. Tests substitute a fake.
type Runner interface {
	// Output runs a command to completion and returns its combined output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it.
	Start(name string, args []string, dir string) error
}

// DefaultRunner runs commands on the host.
func DefaultRunner() Runner { return execRunner{} }

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (execRunner) Start(name string, args []string, dir string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background so the child does not linger as a zombie.
	go cmd.Wait()
	return nil
}

// Options carries everything Select needs to build a capability.
type Options struct {
	Kind     string
	MenuDirs []string
	Patterns []string
	Exclude  func(path string) bool
	ADBPath  string
	Serial   string
	Catalog  *i18n.Catalog
	Logger   *zap.Logger
	Runner   Runner
}

// Select builds the capability named by opts.Kind. "auto" picks the
// desktop shell on desktop operating systems and the browser fallback
// elsewhere.
func Select(opts Options) (Capability, error) {
	if opts.Runner == nil {
		opts.Runner = execRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = i18n.Default()
	}

	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	if kind == "" || kind == "auto" {
		switch runtime.GOOS {
		case "windows", "darwin", "linux", "freebsd", "openbsd", "netbsd":
			kind = "desktop"
		default:
			kind = "browser"
		}
	}

	switch kind {
	case "desktop":
		return NewDesktopShell(opts), nil
	case "android":
		return NewMobilePackageManager(apps.BucketAndroid, opts), nil
	case "ios":
		return NewMobilePackageManager(apps.BucketIOS, opts), nil
	case "browser":
		return NewBrowserFallback(opts), nil
	default:
		return nil, fmt.Errorf("unknown platform %q (use auto, desktop, android, ios, or browser)", opts.Kind)
	}
}

// IsDesktopRuntime reports whether runtime polling applies to c.
func IsDesktopRuntime(c Capability) bool {
	return c != nil && c.Kind() == KindDesktop
}

func launchError(cat *i18n.Catalog, key i18n.Key, app apps.InstalledApp, err error) *apps.LaunchError {
	return &apps.LaunchError{App: app, Message: cat.T(key, app.Name), Err: err}
}

// openerCommand returns the OS command that opens a URI or document with
// its registered handler.
func openerCommand(target string) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

// SplitArgs tokenizes a launch argument string. Double quotes group
// words; backslashes are literal so Windows paths survive.
func SplitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasTok  bool
	)
	for _, c := range s {
		switch {
		case c == '"':
			inQuote = !inQuote
			hasTok = true
		case (c == ' ' || c == '\t') && !inQuote:
			if hasTok {
				args = append(args, cur.String())
			}
			cur.Reset()
			hasTok = false
		default:
			cur.WriteRune(c)
			hasTok = true
		}
	}
	if hasTok {
		args = append(args, cur.String())
	}
	return args
}
