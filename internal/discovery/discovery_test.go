package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/kvstore"
	"github.com/lu-zhengda/launchdeck/internal/platform"
	"github.com/lu-zhengda/launchdeck/internal/scancache"
	"github.com/lu-zhengda/launchdeck/internal/shortcut"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeDesktop struct {
	files   []string
	err     error
	calls   atomic.Int32
	entered chan struct{}
	once    sync.Once
	gate    chan struct{}
}

func (f *fakeDesktop) Kind() platform.Kind                              { return platform.KindDesktop }
func (f *fakeDesktop) Bucket() apps.Bucket                              { return apps.BucketDesktop }
func (f *fakeDesktop) Launch(context.Context, apps.InstalledApp) error { return nil }

func (f *fakeDesktop) ShortcutFiles(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.files, f.err
}

type fakeMobile struct {
	bucket apps.Bucket
	pkgs   []string
	err    error
}

func (f *fakeMobile) Kind() platform.Kind                              { return platform.KindMobile }
func (f *fakeMobile) Bucket() apps.Bucket                              { return f.bucket }
func (f *fakeMobile) Launch(context.Context, apps.InstalledApp) error { return nil }
func (f *fakeMobile) ListPackages(context.Context) ([]string, error)   { return f.pkgs, f.err }

type fakeBrowser struct{}

func (fakeBrowser) Kind() platform.Kind                              { return platform.KindBrowser }
func (fakeBrowser) Bucket() apps.Bucket                              { return apps.BucketDesktop }
func (fakeBrowser) Launch(context.Context, apps.InstalledApp) error { return nil }

// mapResolver resolves files from a fixed table; unknown files fail.
func mapResolver(targets map[string]shortcut.Target) shortcut.Resolver {
	return shortcut.ResolverFunc(func(path string) (shortcut.Target, error) {
		t, ok := targets[path]
		if !ok {
			return shortcut.Target{}, shortcut.ErrNoTarget
		}
		return t, nil
	})
}

type recorder struct {
	mu     sync.Mutex
	events []apps.ScanProgress
}

func (r *recorder) record(ev apps.ScanProgress) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) items() []apps.ScanProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []apps.ScanProgress
	for _, ev := range r.events {
		if ev.Phase == apps.PhaseScan && ev.Current > 0 && ev.Total > 1 {
			out = append(out, ev)
		}
	}
	return out
}

func newCache(t *testing.T) (*scancache.Cache, *kvstore.Memory) {
	t.Helper()
	store := kvstore.NewMemory()
	c, err := scancache.New(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c, store
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p := New(opts)
	p.exists = func(path string) bool { return path != "" && !strings.Contains(path, "missing") }
	return p
}

// fiveShortcuts has two links to the same target (with different case).
func fiveShortcuts() (*fakeDesktop, shortcut.Resolver) {
	files := []string{"/menu/A.lnk", "/menu/B.lnk", "/menu/C.lnk", "/menu/D.lnk", "/menu/E.lnk"}
	return &fakeDesktop{files: files}, mapResolver(map[string]shortcut.Target{
		"/menu/A.lnk": {Path: `C:\Apps\a.exe`},
		"/menu/B.lnk": {Path: `C:\Apps\b.exe`, Args: "--x"},
		"/menu/C.lnk": {Path: `C:\apps\A.EXE`},
		"/menu/D.lnk": {Path: `C:\Apps\b.exe`, Args: "--y", Name: "B (alt)"},
		"/menu/E.lnk": {Path: `C:\Apps\e.exe`},
	})
}

// ---------------------------------------------------------------------------
// Desktop scan
// ---------------------------------------------------------------------------

func TestDiscover_DedupesDuplicateTargets(t *testing.T) {
	desk, resolver := fiveShortcuts()
	cache, _ := newCache(t)
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver, Cache: cache})

	rec := &recorder{}
	res, err := p.Discover(context.Background(), false, rec.record)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if res.FromCache || res.Fallback {
		t.Errorf("FromCache=%v Fallback=%v, want live", res.FromCache, res.Fallback)
	}
	if len(res.Apps) != 4 {
		t.Fatalf("got %d apps, want 4: %+v", len(res.Apps), res.Apps)
	}

	ids := make(map[string]bool)
	for _, a := range res.Apps {
		if ids[a.ID] {
			t.Errorf("duplicate id %q", a.ID)
		}
		ids[a.ID] = true
	}

	items := rec.items()
	if len(items) != 5 {
		t.Fatalf("got %d item events, want 5", len(items))
	}
	for i, ev := range items {
		if ev.Current != i+1 || ev.Total != 5 {
			t.Errorf("event %d = %d/%d, want %d/5", i, ev.Current, ev.Total, i+1)
		}
	}
	if items[4].Percent != 100 || items[0].Percent != 20 {
		t.Errorf("percents = %v..%v, want 20..100", items[0].Percent, items[4].Percent)
	}

	first, last := rec.events[0], rec.events[len(rec.events)-1]
	if first.Current != 0 || first.Percent != 0 {
		t.Errorf("first event = %+v, want starting 0/1", first)
	}
	if last.Current != 1 || last.Total != 1 || last.Percent != 100 {
		t.Errorf("last event = %+v, want complete 1/1", last)
	}
}

func TestDiscover_AppFields(t *testing.T) {
	desk := &fakeDesktop{files: []string{"/menu/Editor.lnk", "/menu/Gone.lnk", "/menu/Broken.lnk"}}
	resolver := mapResolver(map[string]shortcut.Target{
		"/menu/Editor.lnk": {Path: `C:\Program Files\Editor\Editor.EXE`, Args: "-n"},
		"/menu/Gone.lnk":   {Path: `C:\missing\gone.exe`},
	})
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver})

	res, err := p.Discover(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(res.Apps) != 1 {
		t.Fatalf("got %d apps, want 1", len(res.Apps))
	}
	got := res.Apps[0]
	want := apps.InstalledApp{
		ID:             DesktopID("/menu/Editor.lnk", `C:\Program Files\Editor\Editor.EXE`, "-n"),
		Name:           "Editor",
		PackageName:    "desktop:editor.exe",
		ExecutablePath: `C:\Program Files\Editor\Editor.EXE`,
		ShortcutPath:   "/menu/Editor.lnk",
		LaunchArgs:     "-n",
	}
	if got != want {
		t.Errorf("app = %+v\nwant  %+v", got, want)
	}
}

func TestDiscover_Icons(t *testing.T) {
	dir := t.TempDir()
	icon := filepath.Join(dir, "editor.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	if err := os.WriteFile(icon, png, 0o644); err != nil {
		t.Fatal(err)
	}
	desk := &fakeDesktop{files: []string{"/menu/Editor.desktop"}}
	resolver := mapResolver(map[string]shortcut.Target{
		"/menu/Editor.desktop": {Path: "/usr/bin/editor", IconPath: icon, Name: "Editor"},
	})
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver, Icons: true})

	res, err := p.Discover(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if !strings.HasPrefix(res.Apps[0].IconDataURL, "data:image/png;base64,") {
		t.Errorf("IconDataURL = %q, want png data url", res.Apps[0].IconDataURL)
	}
}

func TestDiscover_DesktopFallback(t *testing.T) {
	tests := []struct {
		name string
		desk *fakeDesktop
	}{
		{"lister error", &fakeDesktop{err: errors.New("no menu dirs")}},
		{"nothing resolves", &fakeDesktop{files: []string{"/menu/x.lnk"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, _ := newCache(t)
			p := newPipeline(t, Options{Capability: tt.desk, Resolver: mapResolver(nil), Cache: cache})
			rec := &recorder{}

			res, err := p.Discover(context.Background(), false, rec.record)
			if err != nil {
				t.Fatalf("Discover() error: %v", err)
			}
			if !res.Fallback || len(res.Apps) != len(apps.FallbackDesktop()) {
				t.Errorf("got %+v, want desktop fallback", res)
			}
			last := rec.events[len(rec.events)-1]
			if last.Percent != 100 {
				t.Errorf("last event = %+v, want 100%%", last)
			}
			// The fallback is cached like any other result.
			if _, ok := cache.Get(context.Background(), apps.BucketDesktop); !ok {
				t.Error("fallback result was not cached")
			}
		})
	}
}

func TestDiscover_CapsDesktopResults(t *testing.T) {
	var files []string
	targets := make(map[string]shortcut.Target)
	for i := 0; i < 10; i++ {
		f := fmt.Sprintf("/menu/%02d.lnk", i)
		files = append(files, f)
		targets[f] = shortcut.Target{Path: fmt.Sprintf("/opt/app%02d", i)}
	}
	p := newPipeline(t, Options{
		Capability: &fakeDesktop{files: files},
		Resolver:   mapResolver(targets),
		MaxApps:    3,
	})

	res, err := p.Discover(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(res.Apps) != 3 {
		t.Errorf("got %d apps, want 3", len(res.Apps))
	}
	if res.Apps[0].ShortcutPath != "/menu/00.lnk" {
		t.Errorf("cap kept %q first, want discovery order", res.Apps[0].ShortcutPath)
	}
}

func TestDiscover_Cancelled(t *testing.T) {
	desk, resolver := fiveShortcuts()
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Discover(ctx, true, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func TestDiscover_CacheHit(t *testing.T) {
	cache, _ := newCache(t)
	cached := []apps.InstalledApp{
		{ID: "a", Name: "A"},
		{ID: "a", Name: "A again"},
	}
	if err := cache.Put(context.Background(), apps.BucketDesktop, cached); err != nil {
		t.Fatal(err)
	}
	desk, resolver := fiveShortcuts()
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver, Cache: cache})

	rec := &recorder{}
	res, err := p.Discover(context.Background(), false, rec.record)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if !res.FromCache {
		t.Error("FromCache = false, want true")
	}
	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want exactly 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Phase != apps.PhaseCache || ev.Current != 1 || ev.Total != 1 || ev.Percent != 100 {
		t.Errorf("event = %+v, want cache 1/1 100%%", ev)
	}
	if res.Apps[1].ID != "a-1" {
		t.Errorf("cached ids not uniqued: %v", apps.IDs(res.Apps))
	}
	if desk.calls.Load() != 0 {
		t.Error("cache hit should not scan")
	}
}

func TestDiscover_ForceRescanBypassesCache(t *testing.T) {
	cache, _ := newCache(t)
	if err := cache.Put(context.Background(), apps.BucketDesktop, []apps.InstalledApp{{ID: "old"}}); err != nil {
		t.Fatal(err)
	}
	desk, resolver := fiveShortcuts()
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver, Cache: cache})

	res, err := p.Discover(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if res.FromCache || len(res.Apps) != 4 {
		t.Errorf("got FromCache=%v with %d apps, want live 4", res.FromCache, len(res.Apps))
	}
	stored, ok := cache.Get(context.Background(), apps.BucketDesktop)
	if !ok || len(stored) != 4 {
		t.Errorf("cache holds %d apps after rescan, want 4", len(stored))
	}
}

func TestDiscover_CorruptCacheScans(t *testing.T) {
	cache, store := newCache(t)
	if err := store.Set(context.Background(), scancache.Key(apps.BucketDesktop), []byte("{not zstd")); err != nil {
		t.Fatal(err)
	}
	desk, resolver := fiveShortcuts()
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver, Cache: cache})

	res, err := p.Discover(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if res.FromCache || desk.calls.Load() != 1 {
		t.Errorf("corrupt cache should trigger a live scan")
	}
}

// ---------------------------------------------------------------------------
// Mobile and browser
// ---------------------------------------------------------------------------

func TestDiscover_Mobile(t *testing.T) {
	mobile := &fakeMobile{bucket: apps.BucketAndroid, pkgs: []string{"com.tencent.mm", "org.example.notes"}}
	p := newPipeline(t, Options{Capability: mobile})
	rec := &recorder{}

	res, err := p.Discover(context.Background(), true, rec.record)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if res.Bucket != apps.BucketAndroid || res.Fallback {
		t.Errorf("got %+v", res)
	}
	if got := apps.IDs(res.Apps); len(got) != 2 || got[0] != "com.tencent.mm" {
		t.Errorf("ids = %v", got)
	}
	if items := rec.items(); len(items) != 2 {
		t.Errorf("got %d item events, want 2", len(items))
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	opening := 0
	for _, ev := range rec.events {
		if ev.Phase == apps.PhaseScan && ev.Current == 0 {
			opening++
		}
	}
	if opening != 1 {
		t.Errorf("got %d opening events, want exactly 1", opening)
	}
	if first := rec.events[0]; first.Message != i18n.Default().T(i18n.ScanMobileInit) {
		t.Errorf("first event = %q, want the mobile init message", first.Message)
	}
}

func TestDiscover_MobileFallback(t *testing.T) {
	tests := []struct {
		name   string
		mobile *fakeMobile
	}{
		{"adb failure", &fakeMobile{bucket: apps.BucketAndroid, err: errors.New("no devices")}},
		{"no packages", &fakeMobile{bucket: apps.BucketAndroid}},
		{"ios unsupported", &fakeMobile{bucket: apps.BucketIOS, err: platform.ErrUnsupported}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, Options{Capability: tt.mobile})
			res, err := p.Discover(context.Background(), true, nil)
			if err != nil {
				t.Fatalf("Discover() error: %v", err)
			}
			if !res.Fallback || len(res.Apps) != len(apps.FallbackMobile()) {
				t.Errorf("got %+v, want mobile fallback", res)
			}
		})
	}
}

func TestDiscover_BrowserFallback(t *testing.T) {
	p := newPipeline(t, Options{Capability: fakeBrowser{}})
	res, err := p.Discover(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if got := apps.IDs(res.Apps); len(got) != 3 || got[0] != "desktop-vscode" {
		t.Errorf("ids = %v, want desktop fallback", got)
	}
}

func TestDiscover_NoCapability(t *testing.T) {
	if _, err := New(Options{}).Discover(context.Background(), false, nil); err == nil {
		t.Error("expected error without capability")
	}
}

// ---------------------------------------------------------------------------
// Re-entrancy
// ---------------------------------------------------------------------------

func TestDiscover_ConcurrentCallsShareScan(t *testing.T) {
	desk, resolver := fiveShortcuts()
	desk.entered = make(chan struct{})
	desk.gate = make(chan struct{})
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver})

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = p.Discover(context.Background(), true, nil)
	}()
	<-desk.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = p.Discover(context.Background(), true, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	close(desk.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d error: %v", i, err)
		}
	}
	if n := desk.calls.Load(); n != 1 {
		t.Errorf("scanned %d times, want 1", n)
	}
	if len(results[0].Apps) != 4 || len(results[1].Apps) != 4 {
		t.Errorf("results = %d and %d apps, want 4 each", len(results[0].Apps), len(results[1].Apps))
	}
}

func TestDiscover_JoinerSurvivesLeaderCancel(t *testing.T) {
	desk, resolver := fiveShortcuts()
	desk.entered = make(chan struct{})
	desk.gate = make(chan struct{})
	p := newPipeline(t, Options{Capability: desk, Resolver: resolver})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Discover(leaderCtx, true, nil)
		leaderErr <- err
	}()
	<-desk.entered

	type outcome struct {
		res Result
		err error
	}
	joined := make(chan outcome, 1)
	go func() {
		res, err := p.Discover(context.Background(), true, nil)
		joined <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader err = %v, want context.Canceled", err)
	}
	close(desk.gate)

	got := <-joined
	if got.err != nil {
		t.Fatalf("joiner err = %v, want the shared result", got.err)
	}
	if len(got.res.Apps) != 4 {
		t.Errorf("joiner got %d apps, want 4", len(got.res.Apps))
	}
	if n := desk.calls.Load(); n != 1 {
		t.Errorf("scanned %d times, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestDesktopID(t *testing.T) {
	a := DesktopID("/menu/A.lnk", `C:\a.exe`, "")
	b := DesktopID("/menu/A.lnk", `C:\a.exe`, "")
	c := DesktopID("/menu/A.lnk", `C:\a.exe`, "--x")

	if a != b {
		t.Errorf("DesktopID not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Error("args should change the id")
	}
	if !strings.HasPrefix(a, "desktop-") || len(a) != len("desktop-")+12 {
		t.Errorf("DesktopID = %q, want desktop- plus 12 hex chars", a)
	}
}

func TestExeBase(t *testing.T) {
	tests := map[string]string{
		`C:\Program Files\Editor\Editor.exe`: "Editor.exe",
		"/usr/bin/firefox":                    "firefox",
		"/Applications/Notes.app/":            "Notes.app",
	}
	for in, want := range tests {
		if got := exeBase(in); got != want {
			t.Errorf("exeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
