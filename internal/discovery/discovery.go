// Package discovery enumerates launchable apps for the selected platform,
// serves repeat requests from the scan cache, and reports progress while
// a live scan runs.
package discovery

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/platform"
	"github.com/lu-zhengda/launchdeck/internal/scancache"
	"github.com/lu-zhengda/launchdeck/internal/shortcut"
	"github.com/lu-zhengda/launchdeck/internal/utils"
)

// DefaultMaxApps caps desktop results.
const DefaultMaxApps = 300

// ProgressFunc receives progress events in emission order.
type ProgressFunc func(apps.ScanProgress)

// ShortcutLister is implemented by capabilities that can enumerate
// program-menu shortcut files.
type ShortcutLister interface {
	ShortcutFiles(ctx context.Context) ([]string, error)
}

// PackageLister is implemented by capabilities that can enumerate
// installed mobile packages.
type PackageLister interface {
	ListPackages(ctx context.Context) ([]string, error)
}

// Result is the outcome of one Discover call.
type Result struct {
	Apps      []apps.InstalledApp `json:"apps"`
	FromCache bool                `json:"fromCache"`
	Bucket    apps.Bucket         `json:"bucket"`
	// Fallback is set when live enumeration failed and a fixed list was
	// substituted.
	Fallback bool `json:"fallback,omitempty"`
}

// Options configures a Pipeline. Capability is required; everything else
// has a usable default.
type Options struct {
	Capability platform.Capability
	Resolver   shortcut.Resolver
	Cache      *scancache.Cache
	Catalog    *i18n.Catalog
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	MaxApps    int
	// Icons embeds shortcut icons as data URLs.
	Icons bool
}

// Pipeline runs discovery. It is safe for concurrent use; concurrent
// scans with the same force flag share one run.
type Pipeline struct {
	capability platform.Capability
	resolver   shortcut.Resolver
	cache      *scancache.Cache
	catalog    *i18n.Catalog
	logger     *zap.Logger
	metrics    *metrics.Metrics
	maxApps    int
	icons      bool

	exists func(path string) bool
	now    func() time.Time
	group  singleflight.Group
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		capability: opts.Capability,
		resolver:   opts.Resolver,
		cache:      opts.Cache,
		catalog:    opts.Catalog,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		maxApps:    opts.MaxApps,
		icons:      opts.Icons,
		exists:     pathExists,
		now:        time.Now,
	}
	if p.resolver == nil {
		p.resolver = shortcut.Default()
	}
	if p.catalog == nil {
		p.catalog = i18n.Default()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.maxApps <= 0 {
		p.maxApps = DefaultMaxApps
	}
	return p
}

// Bucket is the cache bucket of the injected capability.
func (p *Pipeline) Bucket() apps.Bucket {
	return p.capability.Bucket()
}

// Discover returns the app list, from cache unless forceRescan is set or
// the cache entry is missing. Progress events go to onProgress, which may
// be nil. Callers that join a scan already in flight get its result but
// none of its progress events.
func (p *Pipeline) Discover(ctx context.Context, forceRescan bool, onProgress ProgressFunc) (Result, error) {
	if p.capability == nil {
		return Result{}, errors.New("discovery: no platform capability")
	}
	bucket := p.capability.Bucket()
	emit := func(ev apps.ScanProgress) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	if !forceRescan && p.cache != nil {
		if cached, ok := p.cache.Get(ctx, bucket); ok {
			items := apps.EnsureUniqueIDs(cached)
			emit(apps.NewProgress(apps.PhaseCache, 1, 1, p.catalog.T(i18n.CacheLoaded)))
			p.metrics.RecordScan(bucket, "cache", len(items), 0)
			p.logger.Debug("discovery served from cache",
				zap.String("bucket", string(bucket)), zap.Int("apps", len(items)))
			return Result{Apps: items, FromCache: true, Bucket: bucket}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// A started scan runs to completion even if the caller that started it
	// goes away, so joiners still get a result. Each caller stops waiting
	// when its own ctx ends.
	key := fmt.Sprintf("%s:%t", bucket, forceRescan)
	ch := p.group.DoChan(key, func() (any, error) {
		return p.scan(context.WithoutCancel(ctx), bucket, func(ev apps.ScanProgress) {
			if ctx.Err() == nil {
				emit(ev)
			}
		})
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		if r.Shared {
			// Joiners must not alias the leader's slice.
			res.Apps = append([]apps.InstalledApp(nil), res.Apps...)
		}
		return res, nil
	}
}

func (p *Pipeline) scan(ctx context.Context, bucket apps.Bucket, emit ProgressFunc) (Result, error) {
	start := p.now()
	opening := i18n.ScanStarting
	if _, ok := p.capability.(PackageLister); ok {
		opening = i18n.ScanMobileInit
	}
	emit(apps.NewProgress(apps.PhaseScan, 0, 1, p.catalog.T(opening)))

	var (
		items    []apps.InstalledApp
		fallback bool
	)
	switch c := p.capability.(type) {
	case ShortcutLister:
		found, err := p.scanDesktop(ctx, c, emit)
		if err != nil || len(found) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			p.logger.Warn("desktop scan produced no apps, using fallback list", zap.Error(err))
			items, fallback = apps.FallbackDesktop(), true
		} else {
			items = found
		}
	case PackageLister:
		found, err := p.scanMobile(ctx, c, emit)
		if err != nil || len(found) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			if !errors.Is(err, platform.ErrUnsupported) {
				p.logger.Warn("package scan produced no apps, using fallback list", zap.Error(err))
			}
			items, fallback = apps.FallbackMobile(), true
		} else {
			items = found
		}
	default:
		if bucket == apps.BucketDesktop {
			items = apps.FallbackDesktop()
		} else {
			items = apps.FallbackMobile()
		}
		fallback = true
	}

	items = apps.EnsureUniqueIDs(items)
	if bucket == apps.BucketDesktop && len(items) > p.maxApps {
		items = items[:p.maxApps]
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, bucket, items); err != nil {
			p.logger.Warn("failed to persist scan cache", zap.String("bucket", string(bucket)), zap.Error(err))
		}
	}

	msg := p.catalog.T(i18n.ScanComplete)
	source := "live"
	if fallback {
		msg = p.catalog.T(i18n.ScanFallback)
		source = "fallback"
	}
	emit(apps.NewProgress(apps.PhaseScan, 1, 1, msg))

	elapsed := p.now().Sub(start)
	p.metrics.RecordScan(bucket, source, len(items), elapsed)
	p.logger.Info("discovery scan complete",
		zap.String("bucket", string(bucket)),
		zap.Int("apps", len(items)),
		zap.Bool("fallback", fallback),
		zap.Duration("elapsed", elapsed))

	return Result{Apps: items, Bucket: bucket, Fallback: fallback}, nil
}

// scanDesktop resolves every shortcut file, dropping unresolvable
// entries, missing targets and duplicate targets. It emits one event per
// file.
func (p *Pipeline) scanDesktop(ctx context.Context, lister ShortcutLister, emit ProgressFunc) ([]apps.InstalledApp, error) {
	files, err := lister.ShortcutFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcuts: %w", err)
	}

	total := len(files)
	seen := make(map[string]bool, total)
	var out []apps.InstalledApp

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if app, ok := p.resolveShortcut(file, seen); ok {
			out = append(out, app)
		}
		emit(apps.NewProgress(apps.PhaseScan, i+1, total, p.catalog.T(i18n.ScanDesktopItem, i+1, total)))
	}
	return out, nil
}

func (p *Pipeline) resolveShortcut(file string, seen map[string]bool) (apps.InstalledApp, bool) {
	target, err := p.resolver.Resolve(file)
	if err != nil {
		if !errors.Is(err, shortcut.ErrHidden) {
			p.logger.Debug("skipping shortcut", zap.String("path", file), zap.Error(err))
		}
		return apps.InstalledApp{}, false
	}
	if !p.exists(target.Path) {
		p.logger.Debug("skipping shortcut with missing target",
			zap.String("path", file), zap.String("target", target.Path))
		return apps.InstalledApp{}, false
	}

	dedupe := strings.ToLower(target.Path + "|" + target.Args)
	if seen[dedupe] {
		return apps.InstalledApp{}, false
	}
	seen[dedupe] = true

	app := apps.InstalledApp{
		ID:             DesktopID(file, target.Path, target.Args),
		Name:           shortcut.DisplayName(file, target),
		PackageName:    "desktop:" + strings.ToLower(exeBase(target.Path)),
		ExecutablePath: target.Path,
		ShortcutPath:   file,
		LaunchArgs:     target.Args,
	}
	if p.icons && target.IconPath != "" {
		if url, err := shortcut.IconDataURL(target.IconPath, shortcut.MaxIconBytes); err == nil {
			app.IconDataURL = url
		} else {
			p.logger.Debug("icon unavailable", zap.String("icon", target.IconPath), zap.Error(err))
		}
	}
	return app, true
}

func (p *Pipeline) scanMobile(ctx context.Context, lister PackageLister, emit ProgressFunc) ([]apps.InstalledApp, error) {
	pkgs, err := lister.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	total := len(pkgs)
	out := make([]apps.InstalledApp, 0, total)
	for i, pkg := range pkgs {
		out = append(out, apps.InstalledApp{ID: pkg, Name: pkg, PackageName: pkg})
		emit(apps.NewProgress(apps.PhaseScan, i+1, total, p.catalog.T(i18n.ScanMobileItem, i+1, total)))
	}
	return out, nil
}

// DesktopID derives a stable id from the shortcut and what it points at.
func DesktopID(link, target, args string) string {
	sum := blake3.Sum256([]byte(link + "|" + target + "|" + args))
	return "desktop-" + hex.EncodeToString(sum[:])[:12]
}

// exeBase is the last element of a target path. Windows targets keep
// their backslashes on other hosts.
func exeBase(path string) string {
	base := filepath.Base(strings.TrimRight(path, `/\`))
	if i := strings.LastIndex(base, `\`); i >= 0 {
		base = base[i+1:]
	}
	return base
}

func pathExists(path string) bool {
	return path != "" && utils.Exists(path)
}
