package platform

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
)

// MobilePackageManager talks to a phone over adb. iOS has no equivalent
// tool, so the ios bucket reports ErrUnsupported for enumeration and can
// only open known URI schemes.
type MobilePackageManager struct {
	bucket  apps.Bucket
	adb     string
	serial  string
	runner  Runner
	catalog *i18n.Catalog
	logger  *zap.Logger
}

func NewMobilePackageManager(bucket apps.Bucket, opts Options) *MobilePackageManager {
	adb := opts.ADBPath
	if adb == "" {
		adb = "adb"
	}
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MobilePackageManager{
		bucket:  bucket,
		adb:     adb,
		serial:  opts.Serial,
		runner:  runner,
		catalog: opts.Catalog,
		logger:  logger,
	}
}

func (m *MobilePackageManager) Kind() Kind          { return KindMobile }
func (m *MobilePackageManager) Bucket() apps.Bucket { return m.bucket }

func (m *MobilePackageManager) adbArgs(args ...string) []string {
	if m.serial != "" {
		return append([]string{"-s", m.serial}, args...)
	}
	return args
}

// ListPackages returns third-party package names in the order adb
// reports them.
func (m *MobilePackageManager) ListPackages(ctx context.Context) ([]string, error) {
	if m.bucket != apps.BucketAndroid {
		return nil, ErrUnsupported
	}
	out, err := m.runner.Output(ctx, m.adb, m.adbArgs("shell", "pm", "list", "packages", "-3")...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return parsePackageList(out), nil
}

func parsePackageList(out []byte) []string {
	var pkgs []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if pkg, ok := strings.CutPrefix(line, "package:"); ok && pkg != "" {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs
}

// Launch opens the package's launcher activity, falling back to the app's
// URI or a known scheme.
func (m *MobilePackageManager) Launch(ctx context.Context, app apps.InstalledApp) error {
	if m.bucket == apps.BucketAndroid && app.PackageName != "" {
		out, err := m.runner.Output(ctx, m.adb, m.adbArgs("shell", "monkey", "-p", app.PackageName,
			"-c", "android.intent.category.LAUNCHER", "1")...)
		if err == nil && !bytes.Contains(out, []byte("No activities found")) {
			m.logger.Info("launched package", zap.String("package", app.PackageName))
			return nil
		}
		m.logger.Debug("monkey launch failed, trying uri",
			zap.String("package", app.PackageName), zap.Error(err), zap.ByteString("output", out))
	}

	uri := apps.LaunchTarget(app)
	if uri == "" {
		return launchError(m.catalog, i18n.LaunchNoTarget, app, nil)
	}
	if m.bucket != apps.BucketAndroid {
		return launchError(m.catalog, i18n.LaunchUnsupported, app, ErrUnsupported)
	}
	out, err := m.runner.Output(ctx, m.adb, m.adbArgs("shell", "am", "start",
		"-a", "android.intent.action.VIEW", "-d", uri)...)
	if err != nil || bytes.Contains(out, []byte("Error:")) {
		if err == nil {
			err = fmt.Errorf("%s", strings.TrimSpace(string(out)))
		}
		return launchError(m.catalog, i18n.LaunchFailed, app, err)
	}
	return nil
}
