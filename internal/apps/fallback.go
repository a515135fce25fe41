package apps

// Bucket is the coarse platform classification used to key caches and
// select the scanning strategy.
type Bucket string

const (
	BucketAndroid Bucket = "android"
	BucketIOS     Bucket = "ios"
	BucketDesktop Bucket = "desktop"
)

// The fallback lists are substituted when live enumeration fails or is
// unsupported. They are returned as fresh copies so callers may not
// alter the shared tables.

var fallbackMobile = []InstalledApp{
	{ID: "wx", Name: "WeChat", PackageName: "com.tencent.mm"},
	{ID: "qq", Name: "QQ", PackageName: "com.tencent.mobileqq"},
	{ID: "browser", Name: "Browser", PackageName: "com.android.browser"},
	{ID: "map", Name: "Amap", PackageName: "com.autonavi.minimap"},
}

var fallbackDesktop = []InstalledApp{
	{ID: "desktop-vscode", Name: "VS Code", PackageName: "desktop:vscode", LaunchURI: "vscode://"},
	{ID: "desktop-edge", Name: "Microsoft Edge", PackageName: "desktop:edge", LaunchURI: "microsoft-edge:https://www.bing.com"},
	{ID: "desktop-settings", Name: "Windows Settings", PackageName: "desktop:settings", LaunchURI: "ms-settings:"},
}

// FallbackMobile returns the fixed mobile list.
func FallbackMobile() []InstalledApp {
	return append([]InstalledApp(nil), fallbackMobile...)
}

// FallbackDesktop returns the fixed desktop list.
func FallbackDesktop() []InstalledApp {
	return append([]InstalledApp(nil), fallbackDesktop...)
}

// KnownSchemes maps well-known mobile packages to their URI schemes. It is
// the launch fallback when an app carries no LaunchURI.
var KnownSchemes = map[string]string{
	"com.tencent.mm":       "weixin://",
	"com.tencent.mobileqq": "mqq://",
	"com.autonavi.minimap": "androidamap://",
}

// LaunchTarget returns the URI to open for app: its own LaunchURI, or the
// known scheme for its package.
func LaunchTarget(app InstalledApp) string {
	if app.LaunchURI != "" {
		return app.LaunchURI
	}
	return KnownSchemes[app.PackageName]
}
