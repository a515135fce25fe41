package platform

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
)

// BrowserFallback can neither enumerate apps nor start executables. It
// opens URI schemes through the OS handler and refuses local files.
type BrowserFallback struct {
	runner  Runner
	catalog *i18n.Catalog
	logger  *zap.Logger
}

func NewBrowserFallback(opts Options) *BrowserFallback {
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserFallback{runner: runner, catalog: opts.Catalog, logger: logger}
}

func (b *BrowserFallback) Kind() Kind          { return KindBrowser }
func (b *BrowserFallback) Bucket() apps.Bucket { return apps.BucketDesktop }

func (b *BrowserFallback) Launch(_ context.Context, app apps.InstalledApp) error {
	uri := apps.LaunchTarget(app)
	if uri == "" {
		if app.ExecutablePath != "" {
			return launchError(b.catalog, i18n.LaunchUnsupported, app, ErrUnsupported)
		}
		return launchError(b.catalog, i18n.LaunchNoTarget, app, nil)
	}
	if strings.HasPrefix(strings.ToLower(uri), "file:") {
		return launchError(b.catalog, i18n.LaunchFileBlocked, app, ErrUnsupported)
	}
	name, args := openerCommand(uri)
	if err := b.runner.Start(name, args, ""); err != nil {
		return launchError(b.catalog, i18n.LaunchFailed, app, err)
	}
	b.logger.Info("opened uri", zap.String("app", app.ID), zap.String("uri", uri))
	return nil
}
