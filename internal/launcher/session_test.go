package launcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/config"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/kvstore"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/platform"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeDiscoverer struct {
	items []apps.InstalledApp
	err   error
	calls int
}

func (f *fakeDiscoverer) Discover(_ context.Context, force bool, onProgress discovery.ProgressFunc) (discovery.Result, error) {
	f.calls++
	if f.err != nil {
		return discovery.Result{}, f.err
	}
	if onProgress != nil {
		onProgress(apps.NewProgress(apps.PhaseScan, 1, 1, "done"))
	}
	return discovery.Result{Apps: append([]apps.InstalledApp(nil), f.items...), Bucket: apps.BucketDesktop}, nil
}

type fakeCapability struct {
	kind platform.Kind

	mu       sync.Mutex
	launched []string
	fail     map[string]error
}

func (f *fakeCapability) Kind() platform.Kind { return f.kind }

func (f *fakeCapability) Bucket() apps.Bucket {
	if f.kind == platform.KindMobile {
		return apps.BucketAndroid
	}
	return apps.BucketDesktop
}

func (f *fakeCapability) Launch(_ context.Context, app apps.InstalledApp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[app.ID]; err != nil {
		return err
	}
	f.launched = append(f.launched, app.ID)
	return nil
}

func (f *fakeCapability) launches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launched...)
}

type fakeInspector struct {
	mu    sync.Mutex
	stats []apps.RuntimeStat
	fail  map[string]bool
}

func (f *fakeInspector) Stats(context.Context, []apps.InstalledApp) ([]apps.RuntimeStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, nil
}

func (f *fakeInspector) ForceStop(_ context.Context, app apps.InstalledApp, _ []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[app.ID] {
		return errors.New("denied")
	}
	var kept []apps.RuntimeStat
	for _, s := range f.stats {
		if s.AppID != app.ID {
			kept = append(kept, s)
		}
	}
	f.stats = kept
	return nil
}

type announcements struct {
	mu   sync.Mutex
	msgs []string
}

func (a *announcements) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, text)
}

func testApps() []apps.InstalledApp {
	return []apps.InstalledApp{
		{ID: "code", Name: "Code", PackageName: "desktop:code.exe"},
		{ID: "word", Name: "Word", PackageName: "desktop:winword.exe"},
		{ID: "paint", Name: "Paint", PackageName: "desktop:mspaint.exe"},
	}
}

type harness struct {
	session   *Session
	disc      *fakeDiscoverer
	cap       *fakeCapability
	inspector *fakeInspector
	kv        *kvstore.Memory
	spoken    *announcements
	now       time.Time
}

func newHarness(t *testing.T, kind platform.Kind) *harness {
	t.Helper()
	h := &harness{
		disc:      &fakeDiscoverer{items: testApps()},
		cap:       &fakeCapability{kind: kind},
		inspector: &fakeInspector{},
		kv:        kvstore.NewMemory(),
		spoken:    &announcements{},
		now:       time.Date(2026, 2, 18, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	store := prefs.Open(context.Background(), h.kv, nil)
	loop := reconcile.NewLoop(reconcile.NewReconciler(0), h.inspector, reconcile.LoopOptions{
		Desktop:         kind == platform.KindDesktop,
		LaunchPokeDelay: time.Hour,
		Clock:           clock,
	})
	h.session = New(Options{
		Capability: h.cap,
		Discoverer: h.disc,
		Prefs:      store,
		Loop:       loop,
		Announcer:  h.spoken,
		Clock:      clock,
	})
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if _, err := h.session.Load(context.Background(), false, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Load and layout
// ---------------------------------------------------------------------------

func TestLoad_InstallsAppsAndPrunesPins(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	if _, err := h.session.TogglePin("word"); err != nil {
		t.Fatalf("TogglePin() error: %v", err)
	}

	h.disc.items = testApps()[:1]
	var events int
	res, err := h.session.Load(context.Background(), true, func(apps.ScanProgress) { events++ })
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(res.Apps) != 1 || events != 1 {
		t.Errorf("Load() = %d apps, %d events; want 1, 1", len(res.Apps), events)
	}
	if got := h.session.Layout().Pinned; len(got) != 0 {
		t.Errorf("Pinned = %v, want vanished pin dropped", got)
	}
	if got := h.session.Loop().Apps(); len(got) != 1 {
		t.Errorf("loop apps = %d, want 1", len(got))
	}
	if !h.session.Loaded() {
		t.Error("Loaded() = false after Load")
	}
}

func TestLoad_Error(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.disc.err = errors.New("no capability")
	if _, err := h.session.Load(context.Background(), false, nil); err == nil {
		t.Fatal("Load() expected error")
	}
	if h.session.Loaded() {
		t.Error("Loaded() = true after failed Load")
	}
}

func TestLayout_PinsOrderAndQuery(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)

	if pinned, _ := h.session.TogglePin("paint"); !pinned {
		t.Fatal("TogglePin(paint) = false, want pinned")
	}
	layout := h.session.Layout()
	if len(layout.Pinned) != 1 || layout.Pinned[0].ID != "paint" {
		t.Errorf("Pinned = %v, want [paint]", apps.IDs(layout.Pinned))
	}
	if layout.Counts[prefs.AllGroups] != 2 {
		t.Errorf("Counts[all] = %d, want 2 (pinned excluded)", layout.Counts[prefs.AllGroups])
	}

	if !h.session.Move("word", "code") {
		t.Fatal("Move() = false")
	}
	ordered := apps.IDs(h.session.Layout().Ordered(prefs.AllGroups))
	if len(ordered) != 3 || ordered[0] != "paint" {
		t.Errorf("Ordered = %v, want pinned first", ordered)
	}

	h.session.SetQuery("word")
	layout = h.session.Layout()
	if layout.Counts[prefs.AllGroups] != 1 || len(layout.Pinned) != 0 {
		t.Errorf("query layout = %+v, want only word", layout.Counts)
	}
}

func TestTogglePin_UnknownApp(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	if _, err := h.session.TogglePin("ghost"); !errors.Is(err, ErrUnknownApp) {
		t.Errorf("TogglePin(ghost) error = %v, want ErrUnknownApp", err)
	}
	if err := h.session.SetGroup("ghost", apps.GroupOffice); !errors.Is(err, ErrUnknownApp) {
		t.Errorf("SetGroup(ghost) error = %v, want ErrUnknownApp", err)
	}
}

func TestSetGroup(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	if err := h.session.SetGroup("paint", apps.GroupOffice); err != nil {
		t.Fatalf("SetGroup() error: %v", err)
	}
	var found bool
	for _, app := range h.session.Layout().Groups[apps.GroupOffice] {
		if app.ID == "paint" {
			found = true
		}
	}
	if !found {
		t.Error("paint not in office group after SetGroup")
	}
	h.session.ClearGroup("paint")
	paint, _ := h.session.App("paint")
	detected := apps.DetectGroup(paint)
	found = false
	for _, app := range h.session.Layout().Groups[detected] {
		if app.ID == "paint" {
			found = true
		}
	}
	if !found {
		t.Errorf("paint not back in detected group %s after ClearGroup", detected)
	}
}

func TestSetActiveGroup(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", prefs.AllGroups, false},
		{"Office", "office", false},
		{"all", prefs.AllGroups, false},
		{"games", "", true},
	}
	for _, tt := range tests {
		err := h.session.SetActiveGroup(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetActiveGroup(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && h.session.ActiveGroup() != tt.want {
			t.Errorf("ActiveGroup() = %q, want %q", h.session.ActiveGroup(), tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.disc.items = append(testApps(), apps.InstalledApp{ID: "wordpad", Name: "WordPad", PackageName: "desktop:wordpad.exe"})
	h.load(t)

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"code", "code", false},
		{"PAINT", "paint", false},
		{"word", "word", false},
		{"wordp", "wordpad", false},
		{"wo", "", true},
		{"ghost", "", true},
	}
	for _, tt := range tests {
		got, err := h.session.Find(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("Find(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got.ID != tt.want {
			t.Errorf("Find(%q) = %q, want %q", tt.ref, got.ID, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Launch
// ---------------------------------------------------------------------------

func TestLaunch_DesktopMarksStarting(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)

	out, err := h.session.LaunchID(context.Background(), "code")
	if err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	if !out.Launched {
		t.Error("Launched = false")
	}
	app, _ := h.session.App("code")
	if got := h.session.Runtime(app).Status; got != apps.StatusStarting {
		t.Errorf("status = %s, want starting", got)
	}
	if sum := h.session.Summary(); sum.Starting != 1 || sum.Stopped != 2 {
		t.Errorf("Summary() = %+v", sum)
	}

	h.now = h.now.Add(13 * time.Second)
	if got := h.session.Runtime(app).Status; got != apps.StatusStopped {
		t.Errorf("status after timeout = %s, want stopped", got)
	}
}

func TestLaunch_FailureClearsStarting(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	app, _ := h.session.App("word")
	h.cap.fail = map[string]error{"word": &apps.LaunchError{App: app, Message: "Unable to open Word"}}

	out, err := h.session.Launch(context.Background(), app)
	if err == nil {
		t.Fatal("Launch() expected error")
	}
	if out.Launched || out.Message != "Unable to open Word" {
		t.Errorf("outcome = %+v", out)
	}
	if got := h.session.Runtime(app).Status; got != apps.StatusStopped {
		t.Errorf("status = %s, want stopped after failure", got)
	}
}

func TestLaunch_PlainErrorGetsMessage(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	h.cap.fail = map[string]error{"code": errors.New("exec failed")}
	out, _ := h.session.LaunchID(context.Background(), "code")
	if want := i18n.Default().T(i18n.LaunchFailed, "Code"); out.Message != want {
		t.Errorf("Message = %q, want %q", out.Message, want)
	}
}

func TestLaunch_UnknownID(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	if _, err := h.session.LaunchID(context.Background(), "ghost"); !errors.Is(err, ErrUnknownApp) {
		t.Errorf("LaunchID(ghost) error = %v, want ErrUnknownApp", err)
	}
}

func TestLaunch_MobileHasNoStartingState(t *testing.T) {
	h := newHarness(t, platform.KindMobile)
	h.load(t)
	if _, err := h.session.LaunchID(context.Background(), "code"); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	app, _ := h.session.App("code")
	if got := h.session.Runtime(app).Status; got != apps.StatusStopped {
		t.Errorf("status = %s, want stopped on mobile", got)
	}
}

func TestLaunch_BlindModeNeedsSecondActivation(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	h.session.SetMode(apps.ModeBlind)
	ctx := context.Background()

	out, err := h.session.LaunchID(ctx, "code")
	if err != nil || out.Launched {
		t.Fatalf("first activation = %+v, %v; want announcement only", out, err)
	}
	if want := i18n.Default().T(i18n.BlindConfirm, "Code"); out.Message != want {
		t.Errorf("Message = %q, want %q", out.Message, want)
	}
	if h.session.PendingConfirm() != "code" {
		t.Errorf("PendingConfirm() = %q, want code", h.session.PendingConfirm())
	}

	// A different app restarts the confirmation.
	if out, _ := h.session.LaunchID(ctx, "word"); out.Launched {
		t.Error("activating another app launched it")
	}
	if out, _ := h.session.LaunchID(ctx, "word"); !out.Launched {
		t.Error("second activation of word did not launch")
	}
	if h.session.PendingConfirm() != "" {
		t.Error("pending confirmation not cleared after launch")
	}
	if got := h.cap.launches(); len(got) != 1 || got[0] != "word" {
		t.Errorf("launches = %v, want [word]", got)
	}
	if len(h.spoken.msgs) != 2 {
		t.Errorf("announcements = %d, want 2", len(h.spoken.msgs))
	}
}

func TestSetMode_ClearsPendingConfirm(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	h.session.SetMode(apps.ModeBlind)
	_, _ = h.session.LaunchID(context.Background(), "code")

	h.session.SetMode(apps.ModeBlind)
	if h.session.PendingConfirm() != "" {
		t.Error("SetMode did not clear pending confirmation")
	}
	if got := h.session.CycleMode(); got != apps.ModeNormal {
		t.Errorf("CycleMode() = %s, want normal", got)
	}
	if out, _ := h.session.LaunchID(context.Background(), "code"); !out.Launched {
		t.Error("normal mode should launch on first activation")
	}
}

// ---------------------------------------------------------------------------
// Stop
// ---------------------------------------------------------------------------

func TestStopRecommended_PartialFailure(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	h.inspector.stats = []apps.RuntimeStat{
		{AppID: "code", Status: apps.StatusRunning, ProcessIDs: []int{10}, RecommendedToClose: true},
		{AppID: "word", Status: apps.StatusRunning, ProcessIDs: []int{11}, RecommendedToClose: true},
	}
	h.inspector.fail = map[string]bool{"word": true}
	if err := h.session.Loop().PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error: %v", err)
	}
	if got := apps.IDs(h.session.Recommended()); len(got) != 2 {
		t.Fatalf("Recommended() = %v, want 2", got)
	}

	report := h.session.StopRecommended(context.Background())
	if report.Requested != 2 || report.Failed != 1 || report.FailedIDs[0] != "word" {
		t.Errorf("report = %+v", report)
	}
	title, msg := h.session.StopNotice(report)
	if title == "" || !strings.Contains(msg, "1") {
		t.Errorf("StopNotice() = %q, %q", title, msg)
	}
	code, _ := h.session.App("code")
	if got := h.session.Runtime(code).Status; got != apps.StatusStopped {
		t.Errorf("code status = %s, want stopped", got)
	}
}

func TestStop_IgnoresUnknownIDs(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	h.load(t)
	report := h.session.Stop(context.Background(), []string{"ghost", "code"})
	if report.Requested != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want 1 requested", report)
	}
	if title, _ := h.session.StopNotice(report); title != "" {
		t.Errorf("StopNotice() title = %q, want empty", title)
	}
}

// ---------------------------------------------------------------------------
// News and nav
// ---------------------------------------------------------------------------

func TestNews_FallsBackWithoutSource(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	res, err := h.session.News(context.Background(), news.Technology)
	if err != nil {
		t.Fatalf("News() error: %v", err)
	}
	if !res.Fallback || len(res.Items) != 2 {
		t.Errorf("News() = %+v, want bundled technology items", res)
	}
	if notice := h.session.NewsNotice(res, nil); notice != "" {
		t.Errorf("NewsNotice() = %q, want empty", notice)
	}
	cat := i18n.Default()
	if got := h.session.NewsNotice(news.Result{}, nil); got != cat.T(i18n.NewsEmpty) {
		t.Errorf("NewsNotice(empty) = %q", got)
	}
	if got := h.session.NewsNotice(news.Result{}, errors.New("x")); got != cat.T(i18n.NewsFailed) {
		t.Errorf("NewsNotice(err) = %q", got)
	}
}

func TestToggleNav(t *testing.T) {
	h := newHarness(t, platform.KindDesktop)
	if h.session.NavCollapsed() {
		t.Fatal("nav collapsed by default")
	}
	if !h.session.ToggleNav() || !h.session.NavCollapsed() {
		t.Error("ToggleNav() did not collapse")
	}
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

func TestBuild_WiresSession(t *testing.T) {
	cfg := config.Default()
	cfg.UI.Mode = "elderly"
	cfg.UI.Locale = "zh-CN"
	capability := &fakeCapability{kind: platform.KindDesktop}

	app, err := Build(context.Background(), cfg, nil, Deps{
		KV:         kvstore.NewMemory(),
		Capability: capability,
		Inspector:  &fakeInspector{},
		NewsSource: news.NewGNews(news.GNewsOptions{}),
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer app.Close()

	s := app.Session
	if s.Mode() != apps.ModeElderly {
		t.Errorf("Mode() = %s, want elderly", s.Mode())
	}
	if !s.Loop().Active() {
		t.Error("loop inactive for desktop capability")
	}
	if got := s.Catalog().T(i18n.ScanComplete); got != "扫描完成" {
		t.Errorf("catalog = %q, want Chinese", got)
	}

	// The fake capability lists nothing, so discovery falls back.
	res, err := s.Load(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(res.Apps) == 0 {
		t.Error("Load() returned no apps")
	}
	if err := app.ClearCache(context.Background()); err != nil {
		t.Errorf("ClearCache() error: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
