package launcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/config"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/kvstore"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/platform"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/procinspect"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
	"github.com/lu-zhengda/launchdeck/internal/scancache"
)

// Deps overrides collaborators Build would otherwise create from config.
type Deps struct {
	KV         kvstore.Store
	Runner     platform.Runner
	Capability platform.Capability
	Inspector  reconcile.Inspector
	NewsSource news.Source
	Announcer  Announcer
	Metrics    *metrics.Metrics
}

// App bundles a Session with the resources it owns.
type App struct {
	Config   *config.Config
	Session  *Session
	Cache    *scancache.Cache
	Pipeline *discovery.Pipeline
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	closers []func() error
}

// Build wires a Session from cfg. The caller must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: deps.Metrics}
	catalog := i18n.New(cfg.UI.Locale)

	kv := deps.KV
	if kv == nil {
		db, err := kvstore.OpenSQLite(cfg.DBPath(), 4, logger.Named("kvstore"))
		if err != nil {
			return nil, err
		}
		kv = db
		app.closers = append(app.closers, db.Close)
	}

	cache, err := scancache.New(kv, logger.Named("scancache"))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Cache = cache

	capability := deps.Capability
	if capability == nil {
		capability, err = platform.Select(platform.Options{
			Kind:     cfg.Platform.Kind,
			MenuDirs: cfg.MenuDirs(),
			Patterns: cfg.Discovery.Patterns,
			Exclude:  cfg.IsExcluded,
			ADBPath:  cfg.Platform.ADBPath,
			Serial:   cfg.Platform.Serial,
			Catalog:  catalog,
			Logger:   logger.Named("platform"),
			Runner:   deps.Runner,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Pipeline = discovery.New(discovery.Options{
		Capability: capability,
		Cache:      cache,
		Catalog:    catalog,
		Logger:     logger.Named("discovery"),
		Metrics:    deps.Metrics,
		MaxApps:    cfg.Discovery.MaxApps,
		Icons:      cfg.Discovery.Icons,
	})

	inspector := deps.Inspector
	if inspector == nil {
		inspector = procinspect.New(
			procinspect.WithPolicy(procinspect.ThresholdPolicy{
				CPUPercent: cfg.Runtime.CPUThreshold,
				MemoryMB:   cfg.Runtime.MemoryThresholdMB,
			}),
			procinspect.WithLogger(logger.Named("procinspect")),
		)
	}
	loop := reconcile.NewLoop(reconcile.NewReconciler(cfg.Runtime.StartingTimeout), inspector, reconcile.LoopOptions{
		Desktop:         platform.IsDesktopRuntime(capability),
		Interval:        cfg.Runtime.PollInterval,
		LaunchPokeDelay: cfg.Runtime.LaunchPokeDelay,
		Logger:          logger.Named("reconcile"),
		Metrics:         deps.Metrics,
	})

	source := deps.NewsSource
	if source == nil {
		source = news.NewGNews(news.GNewsOptions{
			APIKey:        cfg.News.APIKey,
			BaseURL:       cfg.News.BaseURL,
			Lang:          cfg.News.Lang,
			Country:       cfg.News.Country,
			Max:           cfg.News.Max,
			Timeout:       cfg.News.Timeout,
			RatePerSecond: cfg.News.RatePerSecond,
			Retries:       2,
			Logger:        logger.Named("news"),
		})
	}

	store := prefs.Open(ctx, kv, logger.Named("prefs"))
	app.Session = New(Options{
		Capability: capability,
		Discoverer: app.Pipeline,
		Prefs:      store,
		Loop:       loop,
		News:       news.NewService(source, logger.Named("news"), deps.Metrics),
		Catalog:    catalog,
		Announcer:  deps.Announcer,
		Logger:     logger.Named("session"),
		Metrics:    deps.Metrics,
		Mode:       apps.Mode(cfg.UI.Mode),
	})
	return app, nil
}

// ClearCache drops the cached scan for the active platform bucket.
func (a *App) ClearCache(ctx context.Context) error {
	if err := a.Cache.Invalidate(ctx, a.Pipeline.Bucket()); err != nil {
		return fmt.Errorf("failed to clear scan cache: %w", err)
	}
	return nil
}

// Close flushes preferences and releases the database.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
