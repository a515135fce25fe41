package config

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Warning describes a config value that was accepted but looks wrong.
type Warning struct {
	Field      string
	Message    string
	Suggestion string
}

var platformKinds = map[string]bool{
	"auto": true, "desktop": true, "android": true, "ios": true, "browser": true,
}

var uiModes = map[string]bool{"normal": true, "elderly": true, "blind": true}

// Validate reports suspicious settings. It never fails: launchdeck falls
// back to defaults for anything it cannot use.
func (c *Config) Validate() []Warning {
	var warnings []Warning
	add := func(field, msg, suggestion string) {
		warnings = append(warnings, Warning{Field: field, Message: msg, Suggestion: suggestion})
	}

	if !platformKinds[c.Platform.Kind] {
		add("platform.kind", fmt.Sprintf("unknown platform %q", c.Platform.Kind),
			"use auto, desktop, android, ios, or browser")
	}
	if c.Discovery.MaxApps <= 0 {
		add("discovery.max_apps", "max_apps must be positive", "set it to 300")
	}
	if len(c.Discovery.Patterns) == 0 {
		add("discovery.patterns", "no shortcut patterns configured; desktop scans will find nothing",
			`add "**/*.lnk" or "**/*.desktop"`)
	}
	if c.Runtime.PollInterval < 500*time.Millisecond {
		add("runtime.poll_interval", fmt.Sprintf("poll interval %s is very short", c.Runtime.PollInterval),
			"use 2.5s or longer")
	}
	if c.Runtime.StartingTimeout <= c.Runtime.PollInterval {
		add("runtime.starting_timeout", "starting timeout should be longer than the poll interval",
			"use 12s")
	}
	if c.Runtime.CPUThreshold <= 0 || c.Runtime.CPUThreshold > 100*64 {
		add("runtime.cpu_threshold", fmt.Sprintf("cpu threshold %.1f is out of range", c.Runtime.CPUThreshold), "")
	}
	if c.Runtime.MemoryThresholdMB <= 0 {
		add("runtime.memory_threshold_mb", "memory threshold must be positive", "")
	}
	if c.News.Max <= 0 || c.News.Max > 100 {
		add("news.max", fmt.Sprintf("news.max %d is out of range", c.News.Max), "use a value between 1 and 100")
	}
	if c.News.RatePerSecond <= 0 {
		add("news.rate_per_second", "rate must be positive", "use 1")
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		add("logging.level", fmt.Sprintf("unknown log level %q", c.Logging.Level),
			"use debug, info, warn, or error")
	}
	if _, err := language.Parse(c.UI.Locale); err != nil {
		add("ui.locale", fmt.Sprintf("unparseable locale %q", c.UI.Locale), "use en or zh")
	}
	if !uiModes[c.UI.Mode] {
		add("ui.mode", fmt.Sprintf("unknown mode %q", c.UI.Mode), "use normal, elderly, or blind")
	}
	if c.UI.Columns < 1 {
		add("ui.columns", "columns must be at least 1", "")
	}
	if host, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", fmt.Sprintf("invalid listen address %q", c.Server.Addr), "use host:port")
	} else if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		add("server.addr", "API server is reachable from other machines", "bind to 127.0.0.1")
	}
	return warnings
}

// LoadAndValidate parses raw YAML and validates the result. Unknown keys
// are reported as warnings instead of errors.
func LoadAndValidate(data []byte) (*Config, []Warning) {
	cfg, err := Parse(data)
	if err != nil {
		return Default(), []Warning{{Message: err.Error(), Suggestion: "run `launchdeck config init --force`"}}
	}

	var warnings []Warning
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err == nil {
		for key := range raw {
			if !knownSections[key] {
				warnings = append(warnings, Warning{Field: key, Message: fmt.Sprintf("unknown section %q", key)})
			}
		}
	}
	return cfg, append(warnings, cfg.Validate()...)
}

var knownSections = map[string]bool{
	"platform": true, "discovery": true, "runtime": true, "news": true,
	"storage": true, "logging": true, "ui": true, "server": true,
}
