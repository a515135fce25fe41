package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Platform.Kind != "auto" {
		t.Errorf("expected Platform.Kind 'auto', got %q", cfg.Platform.Kind)
	}
	if cfg.Discovery.MaxApps != 300 {
		t.Errorf("expected MaxApps 300, got %d", cfg.Discovery.MaxApps)
	}
	if len(cfg.Discovery.Patterns) != 3 {
		t.Fatalf("expected 3 default patterns, got %d", len(cfg.Discovery.Patterns))
	}
	if cfg.Runtime.PollInterval != 2500*time.Millisecond {
		t.Errorf("expected PollInterval 2.5s, got %s", cfg.Runtime.PollInterval)
	}
	if cfg.Runtime.StartingTimeout != 12*time.Second {
		t.Errorf("expected StartingTimeout 12s, got %s", cfg.Runtime.StartingTimeout)
	}
	if cfg.News.Max != 20 || cfg.News.Lang != "zh" || cfg.News.Country != "cn" {
		t.Errorf("unexpected news defaults: %+v", cfg.News)
	}
	if cfg.News.APIKey != "" {
		t.Error("expected no default news API key")
	}
	if !strings.HasSuffix(cfg.Storage.DBPath, "launchdeck.db") {
		t.Errorf("expected DBPath to end in launchdeck.db, got %q", cfg.Storage.DBPath)
	}
	if cfg.UI.Mode != "normal" {
		t.Errorf("expected UI.Mode 'normal', got %q", cfg.UI.Mode)
	}

	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Errorf("default config should validate cleanly, got %v", warnings)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := `platform:
  kind: android
  adb_path: /opt/adb
discovery:
  menu_dirs:
    - "~/menus"
  max_apps: 50
  icons: false
runtime:
  poll_interval: 5s
  starting_timeout: 20s
  cpu_threshold: 80
news:
  api_key: "abc"
  max: 10
ui:
  locale: zh
  mode: elderly
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFrom(cfgPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Platform.Kind != "android" || cfg.Platform.ADBPath != "/opt/adb" {
		t.Errorf("unexpected platform: %+v", cfg.Platform)
	}
	if len(cfg.Discovery.MenuDirs) != 1 || cfg.Discovery.MenuDirs[0] != "~/menus" {
		t.Errorf("expected menu_dirs [~/menus], got %v", cfg.Discovery.MenuDirs)
	}
	if cfg.Discovery.MaxApps != 50 {
		t.Errorf("expected MaxApps 50, got %d", cfg.Discovery.MaxApps)
	}
	if cfg.Discovery.Icons {
		t.Error("expected Icons to be false")
	}
	if cfg.Runtime.PollInterval != 5*time.Second {
		t.Errorf("expected PollInterval 5s, got %s", cfg.Runtime.PollInterval)
	}
	if cfg.Runtime.StartingTimeout != 20*time.Second {
		t.Errorf("expected StartingTimeout 20s, got %s", cfg.Runtime.StartingTimeout)
	}
	if cfg.Runtime.CPUThreshold != 80 {
		t.Errorf("expected CPUThreshold 80, got %v", cfg.Runtime.CPUThreshold)
	}
	if cfg.News.APIKey != "abc" || cfg.News.Max != 10 {
		t.Errorf("unexpected news: %+v", cfg.News)
	}
	if cfg.UI.Locale != "zh" || cfg.UI.Mode != "elderly" {
		t.Errorf("unexpected ui: %+v", cfg.UI)
	}

	home, _ := os.UserHomeDir()
	dirs := cfg.MenuDirs()
	if len(dirs) != 1 || dirs[0] != filepath.Join(home, "menus") {
		t.Errorf("MenuDirs() = %v, want expanded ~/menus", dirs)
	}
}

func TestMenuDirsGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"org.gimp.GIMP", "com.spotify.Client"} {
		os.MkdirAll(filepath.Join(dir, name, "applications"), 0o755)
	}
	os.WriteFile(filepath.Join(dir, "stray"), []byte("x"), 0o644)

	cfg := &Config{}
	cfg.Discovery.MenuDirs = []string{
		filepath.Join(dir, "*", "applications"),
		filepath.Join(dir, "missing"),
		"  ",
	}
	dirs := cfg.MenuDirs()
	if len(dirs) != 3 {
		t.Fatalf("MenuDirs() = %v, want 2 glob matches plus the literal entry", dirs)
	}
	if dirs[2] != filepath.Join(dir, "missing") {
		t.Errorf("literal entry = %q, want kept as given", dirs[2])
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	// Only override one field; the rest should keep defaults.
	content := `news:
  api_key: "xyz"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFrom(cfgPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.News.APIKey != "xyz" {
		t.Errorf("expected APIKey 'xyz', got %q", cfg.News.APIKey)
	}
	if cfg.News.Max != 20 {
		t.Errorf("expected News.Max to keep default 20, got %d", cfg.News.Max)
	}
	if cfg.Discovery.MaxApps != 300 {
		t.Errorf("expected MaxApps to keep default 300, got %d", cfg.Discovery.MaxApps)
	}
	if cfg.Runtime.PollInterval != 2500*time.Millisecond {
		t.Errorf("expected PollInterval to keep default, got %s", cfg.Runtime.PollInterval)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "subdir", "config.yaml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		t.Fatal("expected config file to be created")
	}
	if cfg.Discovery.MaxApps != 300 {
		t.Errorf("expected default MaxApps, got %d", cfg.Discovery.MaxApps)
	}

	// Load it again; durations must survive the YAML round trip.
	cfg2, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if cfg2.Runtime.PollInterval != cfg.Runtime.PollInterval {
		t.Errorf("second load returned PollInterval %s, want %s", cfg2.Runtime.PollInterval, cfg.Runtime.PollInterval)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LAUNCHDECK_NEWS_API_KEY", "from-env")
	t.Setenv("LAUNCHDECK_RUNTIME_POLL_INTERVAL", "4s")
	t.Setenv("LAUNCHDECK_DISCOVERY_MAX_APPS", "12")
	t.Setenv("LAUNCHDECK_UI_LOCALE", "zh")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.News.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.News.APIKey)
	}
	if cfg.Runtime.PollInterval != 4*time.Second {
		t.Errorf("PollInterval = %s, want 4s", cfg.Runtime.PollInterval)
	}
	if cfg.Discovery.MaxApps != 12 {
		t.Errorf("MaxApps = %d, want 12", cfg.Discovery.MaxApps)
	}
	if cfg.UI.Locale != "zh" {
		t.Errorf("Locale = %q, want zh", cfg.UI.Locale)
	}
	// Unset variables keep their values.
	if cfg.News.Max != 20 {
		t.Errorf("News.Max = %d, want default 20", cfg.News.Max)
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	t.Setenv("LAUNCHDECK_DISCOVERY_MAX_APPS", "lots")
	if err := Default().ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric max_apps")
	}
}

func TestIsExcluded(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Exclude = []string{"**/Uninstall*", "*.url", "/opt/hidden/**"}

	tests := []struct {
		path string
		want bool
	}{
		{"/menu/Programs/Foo/Uninstall Foo.lnk", true},
		{"/menu/Programs/site.url", true},
		{"/opt/hidden/a/b.desktop", true},
		{"/menu/Programs/Foo/Foo.lnk", false},
	}
	for _, tt := range tests {
		if got := cfg.IsExcluded(tt.path); got != tt.want {
			t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	def := 3 * time.Second
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"", def},
		{"2s", 2 * time.Second},
		{"1500", 1500 * time.Millisecond},
		{"250ms", 250 * time.Millisecond},
		{"soon", def},
	}
	for _, tt := range tests {
		if got := ParseDuration(tt.input, def); got != tt.want {
			t.Errorf("ParseDuration(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte("runtime: [unclosed"), 0o644)

	if _, err := LoadFrom(cfgPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromNonexistentFile(t *testing.T) {
	if _, err := LoadFrom("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Server.Addr = "127.0.0.1:9999"
	cfg.Runtime.MemoryThresholdMB = 2048
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(cfgPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("Server.Addr = %q", loaded.Server.Addr)
	}
	if loaded.Runtime.MemoryThresholdMB != 2048 {
		t.Errorf("MemoryThresholdMB = %v", loaded.Runtime.MemoryThresholdMB)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Platform.Kind = "symbian"
	cfg.UI.Mode = "loud"
	cfg.Server.Addr = "0.0.0.0:7420"
	cfg.Runtime.StartingTimeout = time.Second

	warnings := cfg.Validate()
	fields := make(map[string]bool)
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, want := range []string{"platform.kind", "ui.mode", "server.addr", "runtime.starting_timeout"} {
		if !fields[want] {
			t.Errorf("expected a warning for %s, got %+v", want, warnings)
		}
	}
}

func TestLoadAndValidate_UnknownSection(t *testing.T) {
	cfg, warnings := LoadAndValidate([]byte("scanners:\n  system: true\n"))
	if cfg == nil {
		t.Fatal("expected a config even with warnings")
	}
	if len(warnings) != 1 || warnings[0].Field != "scanners" {
		t.Errorf("expected one unknown-section warning, got %+v", warnings)
	}
}

func TestLoadAndValidate_BadYAML(t *testing.T) {
	cfg, warnings := LoadAndValidate([]byte("runtime: [unclosed"))
	if cfg == nil {
		t.Fatal("expected default config on parse failure")
	}
	if len(warnings) == 0 {
		t.Error("expected a parse warning")
	}
}
