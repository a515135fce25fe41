package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

// Key identifies a user-facing message.
type Key string

const (
	ScanWaiting        Key = "scan.waiting"
	ScanStarting       Key = "scan.starting"
	ScanDesktopItem    Key = "scan.desktop_item"
	ScanMobileInit     Key = "scan.mobile_init"
	ScanMobileItem     Key = "scan.mobile_item"
	ScanFallback       Key = "scan.fallback"
	ScanComplete       Key = "scan.complete"
	CacheLoaded        Key = "cache.loaded"
	LaunchFailed       Key = "launch.failed"
	LaunchNoTarget     Key = "launch.no_target"
	LaunchUnsupported  Key = "launch.unsupported"
	LaunchFileBlocked  Key = "launch.file_blocked"
	StopPartialTitle   Key = "stop.partial_title"
	StopPartialMessage Key = "stop.partial_message"
	BlindConfirm       Key = "blind.confirm"
	NewsEmpty          Key = "news.empty"
	NewsFailed         Key = "news.failed"
)

var english = map[Key]string{
	ScanWaiting:        "Waiting to scan",
	ScanStarting:       "First run, starting scan",
	ScanDesktopItem:    "Scanning desktop apps %d/%d",
	ScanMobileInit:     "Initializing Android scanner",
	ScanMobileItem:     "Scanning installed apps %d/%d",
	ScanFallback:       "Scan failed, using the compatibility list",
	ScanComplete:       "Scan complete",
	CacheLoaded:        "Loaded app list from cache",
	LaunchFailed:       "Unable to open %s",
	LaunchNoTarget:     "No way to launch %s was found",
	LaunchUnsupported:  "%s cannot be launched from this environment",
	LaunchFileBlocked:  "%s points at a local executable, which cannot be opened from this environment",
	StopPartialTitle:   "Some apps did not stop",
	StopPartialMessage: "%d failed to stop, try again later",
	BlindConfirm:       "%s, activate again to open the app",
	NewsEmpty:          "No news in this category yet",
	NewsFailed:         "Failed to load news, try again later",
}

var chinese = map[Key]string{
	ScanWaiting:        "等待扫描",
	ScanStarting:       "首次进入，开始扫描",
	ScanDesktopItem:    "正在扫描电脑软件 %d/%d",
	ScanMobileInit:     "正在初始化 Android 扫描器",
	ScanMobileItem:     "正在扫描已安装应用 %d/%d",
	ScanFallback:       "扫描失败，已使用兼容列表",
	ScanComplete:       "扫描完成",
	CacheLoaded:        "已从缓存加载应用列表",
	LaunchFailed:       "无法打开 %s",
	LaunchNoTarget:     "未找到 %s 的可启动方式",
	LaunchUnsupported:  "当前环境不支持直接启动 %s",
	LaunchFileBlocked:  "%s 指向本地可执行文件，当前环境无法直接打开",
	StopPartialTitle:   "部分应用未停止",
	StopPartialMessage: "%d 个应用停止失败，请稍后重试",
	BlindConfirm:       "%s，再次点击即可打开应用",
	NewsEmpty:          "当前分类暂无资讯",
	NewsFailed:         "资讯加载失败，请稍后重试",
}

var (
	supported = []language.Tag{language.English, language.Chinese}
	catalogs  = []map[Key]string{english, chinese}
	matcher   = language.NewMatcher(supported)
)

// Catalog renders messages for one locale.
type Catalog struct {
	tag      language.Tag
	messages map[Key]string
}

// New returns the catalog that best matches locale (a BCP 47 tag such as
// "en", "zh-CN"). Unknown or empty locales get English.
func New(locale string) *Catalog {
	if locale == "" {
		return Default()
	}
	desired, err := language.Parse(locale)
	if err != nil {
		return Default()
	}
	_, idx, conf := matcher.Match(desired)
	if conf == language.No {
		return Default()
	}
	return &Catalog{tag: supported[idx], messages: catalogs[idx]}
}

// Default returns the English catalog.
func Default() *Catalog {
	return &Catalog{tag: language.English, messages: english}
}

// Tag returns the matched language.
func (c *Catalog) Tag() language.Tag {
	return c.tag
}

// T formats the message for key. Missing keys render as the key itself.
func (c *Catalog) T(key Key, args ...any) string {
	if c == nil {
		c = Default()
	}
	format, ok := c.messages[key]
	if !ok {
		format, ok = english[key]
	}
	if !ok {
		return string(key)
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
