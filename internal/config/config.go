package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/launchdeck/internal/utils"
)

// EnvPrefix prefixes every environment override, e.g.
// LAUNCHDECK_NEWS_API_KEY or LAUNCHDECK_RUNTIME_POLL_INTERVAL.
const EnvPrefix = "LAUNCHDECK"

// Config holds all launchdeck configuration.
type Config struct {
	Platform  PlatformConfig  `yaml:"platform"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	News      NewsConfig      `yaml:"news"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	UI        UIConfig        `yaml:"ui"`
	Server    ServerConfig    `yaml:"server"`
}

// PlatformConfig selects how apps are discovered and launched.
type PlatformConfig struct {
	// Kind is one of auto, desktop, android, ios, browser.
	Kind    string `yaml:"kind" split_words:"true"`
	ADBPath string `yaml:"adb_path" split_words:"true"`
	Serial  string `yaml:"serial" split_words:"true"`
}

// DiscoveryConfig controls the desktop shortcut scan.
type DiscoveryConfig struct {
	MenuDirs []string `yaml:"menu_dirs" split_words:"true"`
	Patterns []string `yaml:"patterns" split_words:"true"`
	Exclude  []string `yaml:"exclude" split_words:"true"`
	MaxApps  int      `yaml:"max_apps" split_words:"true"`
	Icons    bool     `yaml:"icons" split_words:"true"`
}

// RuntimeConfig controls the process poll loop and the close policy.
type RuntimeConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval" split_words:"true"`
	StartingTimeout   time.Duration `yaml:"starting_timeout" split_words:"true"`
	LaunchPokeDelay   time.Duration `yaml:"launch_poke_delay" split_words:"true"`
	CPUThreshold      float64       `yaml:"cpu_threshold" split_words:"true"`
	MemoryThresholdMB float64       `yaml:"memory_threshold_mb" split_words:"true"`
}

// NewsConfig controls the headline source.
type NewsConfig struct {
	APIKey        string        `yaml:"api_key" split_words:"true"`
	BaseURL       string        `yaml:"base_url" split_words:"true"`
	Lang          string        `yaml:"lang" split_words:"true"`
	Country       string        `yaml:"country" split_words:"true"`
	Max           int           `yaml:"max" split_words:"true"`
	Timeout       time.Duration `yaml:"timeout" split_words:"true"`
	RatePerSecond float64       `yaml:"rate_per_second" split_words:"true"`
}

// StorageConfig locates the settings database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" split_words:"true"`
}

// LoggingConfig controls zap output. An empty File logs to stderr, except
// in the TUI which always logs to a file.
type LoggingConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
	File        string `yaml:"file" split_words:"true"`
}

// UIConfig controls presentation defaults.
type UIConfig struct {
	Locale  string `yaml:"locale" split_words:"true"`
	Mode    string `yaml:"mode" split_words:"true"`
	Columns int    `yaml:"columns" split_words:"true"`
}

// ServerConfig controls `launchdeck serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Kind:    "auto",
			ADBPath: "adb",
		},
		Discovery: DiscoveryConfig{
			MenuDirs: utils.DefaultMenuDirs(),
			Patterns: []string{"**/*.lnk", "**/*.desktop", "*.app"},
			Exclude:  []string{"**/Uninstall*", "**/*uninstall*"},
			MaxApps:  300,
			Icons:    true,
		},
		Runtime: RuntimeConfig{
			PollInterval:      2500 * time.Millisecond,
			StartingTimeout:   12 * time.Second,
			LaunchPokeDelay:   500 * time.Millisecond,
			CPUThreshold:      50,
			MemoryThresholdMB: 1024,
		},
		News: NewsConfig{
			BaseURL:       "https://gnews.io/api/v4",
			Lang:          "zh",
			Country:       "cn",
			Max:           20,
			Timeout:       8 * time.Second,
			RatePerSecond: 1,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(utils.DataDir(), "launchdeck.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Locale:  "en",
			Mode:    "normal",
			Columns: 4,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7420",
		},
	}
}

// DefaultPath returns ~/.config/launchdeck/config.yaml.
func DefaultPath() string {
	return filepath.Join(utils.ConfigDir(), "config.yaml")
}

// Load loads config from the given path. If path is empty, it uses the
// default location. If the file does not exist, it creates it with default
// values. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays LAUNCHDECK_* environment variables. Unset variables
// leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsExcluded checks if the given shortcut path matches any of the
// configured exclude patterns. Matching is done against the full path and
// against the base name, so "**/Uninstall*" and "*.url" both work.
func (c *Config) IsExcluded(path string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range c.Discovery.Exclude {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// MenuDirs returns the configured menu directories with "~" and
// environment variables expanded. Glob entries such as
// "~/.var/app/*/data/applications" expand to the directories they match.
func (c *Config) MenuDirs() []string {
	dirs := make([]string, 0, len(c.Discovery.MenuDirs))
	for _, d := range c.Discovery.MenuDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if !strings.ContainsAny(d, "*?[{") {
			dirs = append(dirs, utils.ExpandHome(d))
			continue
		}
		for _, m := range utils.ExpandPaths([]string{d}) {
			if utils.DirExists(m) {
				dirs = append(dirs, m)
			}
		}
	}
	return dirs
}

// DBPath returns the settings database path with "~" expanded.
func (c *Config) DBPath() string {
	return utils.ExpandHome(c.Storage.DBPath)
}

// LogFile returns the log file path, defaulting to the data directory.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return utils.ExpandHome(c.Logging.File)
	}
	return filepath.Join(utils.DataDir(), "launchdeck.log")
}

// ParseDuration parses duration strings like "2s", "1500ms", or a bare
// number of milliseconds. Returns def for empty or unparseable strings.
func ParseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
