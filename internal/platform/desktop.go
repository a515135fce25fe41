package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/utils"
)

// DesktopShell enumerates program-menu shortcuts and starts executables
// directly.
type DesktopShell struct {
	MenuDirs []string
	Patterns []string
	Exclude  func(path string) bool

	runner  Runner
	catalog *i18n.Catalog
	logger  *zap.Logger
}

func NewDesktopShell(opts Options) *DesktopShell {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = []string{"**/*.lnk", "**/*.desktop", "*.app"}
	}
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesktopShell{
		MenuDirs: opts.MenuDirs,
		Patterns: patterns,
		Exclude:  opts.Exclude,
		runner:   runner,
		catalog:  opts.Catalog,
		logger:   logger,
	}
}

func (d *DesktopShell) Kind() Kind          { return KindDesktop }
func (d *DesktopShell) Bucket() apps.Bucket { return apps.BucketDesktop }

// ShortcutFiles walks every menu directory and returns the shortcut
// files matching Patterns, sorted within each directory. Directories
// that do not exist are skipped; if none can be walked, an error is
// returned.
func (d *DesktopShell) ShortcutFiles(ctx context.Context) ([]string, error) {
	var all []string
	walked := 0
	seen := make(map[string]bool)

	for _, root := range d.MenuDirs {
		if !utils.DirExists(root) {
			d.logger.Debug("skipping menu directory", zap.String("dir", root))
			continue
		}
		found, err := d.walk(ctx, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("menu directory walk failed", zap.String("dir", root), zap.Error(err))
			continue
		}
		walked++
		for _, p := range found {
			key := strings.ToLower(p)
			if !seen[key] {
				seen[key] = true
				all = append(all, p)
			}
		}
	}
	if walked == 0 {
		return nil, fmt.Errorf("no readable menu directories among %v", d.MenuDirs)
	}
	return all, nil
}

func (d *DesktopShell) walk(ctx context.Context, root string) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}

	// fastwalk invokes the callback from several goroutines.
	err := fastwalk.Walk(&conf, root, func(p string, de fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if p == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		isBundle := de.IsDir() && strings.EqualFold(filepath.Ext(p), ".app")
		if de.IsDir() && !isBundle {
			return nil
		}
		if d.matches(filepath.ToSlash(rel)) && (d.Exclude == nil || !d.Exclude(p)) {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
		if isBundle {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

func (d *DesktopShell) matches(rel string) bool {
	lower := strings.ToLower(rel)
	for _, pattern := range d.Patterns {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}

// Launch starts the app's executable detached, opens bundles and URIs
// with the OS handler, and fails with a localized LaunchError otherwise.
func (d *DesktopShell) Launch(ctx context.Context, app apps.InstalledApp) error {
	if exe := app.ExecutablePath; exe != "" {
		info, err := os.Stat(exe)
		switch {
		case err == nil && info.IsDir():
			name, args := openerCommand(exe)
			if err := d.runner.Start(name, args, ""); err != nil {
				return launchError(d.catalog, i18n.LaunchFailed, app, err)
			}
			return nil
		case err == nil:
			if err := d.runner.Start(exe, SplitArgs(app.LaunchArgs), filepath.Dir(exe)); err != nil {
				return launchError(d.catalog, i18n.LaunchFailed, app, err)
			}
			d.logger.Info("launched app", zap.String("app", app.ID), zap.String("exe", exe))
			return nil
		case !errors.Is(err, fs.ErrNotExist):
			return launchError(d.catalog, i18n.LaunchFailed, app, err)
		}
	}

	if uri := apps.LaunchTarget(app); uri != "" {
		name, args := openerCommand(uri)
		if err := d.runner.Start(name, args, ""); err != nil {
			return launchError(d.catalog, i18n.LaunchFailed, app, err)
		}
		d.logger.Info("opened app uri", zap.String("app", app.ID), zap.String("uri", uri))
		return nil
	}
	return launchError(d.catalog, i18n.LaunchNoTarget, app, nil)
}
