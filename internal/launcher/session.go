// Package launcher holds the presentation state of the launcher: the
// current app set, the user's layout preferences, the runtime view and the
// accessibility mode. The TUI, CLI and HTTP API all drive a Session.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/platform"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
)

// ErrUnknownApp is returned for ids that are not in the current app set.
var ErrUnknownApp = errors.New("unknown app")

// Discoverer produces the app list. *discovery.Pipeline satisfies it.
type Discoverer interface {
	Discover(ctx context.Context, forceRescan bool, onProgress discovery.ProgressFunc) (discovery.Result, error)
}

// Announcer speaks or displays short messages in blind mode.
type Announcer interface {
	Announce(text string)
}

// AnnouncerFunc adapts a function to Announcer.
type AnnouncerFunc func(text string)

func (f AnnouncerFunc) Announce(text string) { f(text) }

// Options wires a Session. Capability, Discoverer, Prefs and Loop are
// required.
type Options struct {
	Capability platform.Capability
	Discoverer Discoverer
	Prefs      *prefs.Store
	Loop       *reconcile.Loop
	News       *news.Service
	Catalog    *i18n.Catalog
	Announcer  Announcer
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Mode       apps.Mode
	Clock      func() time.Time
}

// LaunchOutcome describes what an activation did.
type LaunchOutcome struct {
	// Launched is false when blind mode only announced the app and waits
	// for a second activation.
	Launched bool   `json:"launched"`
	AppID    string `json:"appId"`
	Message  string `json:"message,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	capability platform.Capability
	discoverer Discoverer
	prefs      *prefs.Store
	loop       *reconcile.Loop
	news       *news.Service
	catalog    *i18n.Catalog
	announcer  Announcer
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu           sync.Mutex
	items        []apps.InstalledApp
	result       discovery.Result
	loaded       bool
	mode         apps.Mode
	query        string
	activeGroup  string
	pendingBlind string
}

func New(opts Options) *Session {
	s := &Session{
		capability:  opts.Capability,
		discoverer:  opts.Discoverer,
		prefs:       opts.Prefs,
		loop:        opts.Loop,
		news:        opts.News,
		catalog:     opts.Catalog,
		announcer:   opts.Announcer,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Clock,
		mode:        apps.ParseMode(string(opts.Mode)),
		activeGroup: prefs.AllGroups,
	}
	if s.catalog == nil {
		s.catalog = i18n.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.news == nil {
		s.news = news.NewService(nil, s.logger, s.metrics)
	}
	return s
}

// Catalog returns the message catalog.
func (s *Session) Catalog() *i18n.Catalog {
	return s.catalog
}

// Capability returns the platform capability.
func (s *Session) Capability() platform.Capability {
	return s.capability
}

// Loop returns the runtime poll loop.
func (s *Session) Loop() *reconcile.Loop {
	return s.loop
}

// Load runs discovery and installs the result: the order is merged, stale
// pins are dropped and the poll loop switches to the new app set.
func (s *Session) Load(ctx context.Context, forceRescan bool, onProgress discovery.ProgressFunc) (discovery.Result, error) {
	res, err := s.discoverer.Discover(ctx, forceRescan, onProgress)
	if err != nil {
		return discovery.Result{}, fmt.Errorf("failed to discover apps: %w", err)
	}

	s.mu.Lock()
	s.items = append([]apps.InstalledApp(nil), res.Apps...)
	s.result = res
	s.loaded = true
	if _, ok := apps.Index(s.items)[s.pendingBlind]; !ok {
		s.pendingBlind = ""
	}
	s.mu.Unlock()

	s.prefs.Apply(apps.IDs(res.Apps))
	s.loop.SetApps(res.Apps)

	s.logger.Info("apps loaded",
		zap.Int("apps", len(res.Apps)),
		zap.Bool("from_cache", res.FromCache),
		zap.Bool("fallback", res.Fallback),
	)
	return res, nil
}

// Loaded reports whether Load has succeeded at least once.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Result returns the last discovery result.
func (s *Session) Result() discovery.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.result
	res.Apps = append([]apps.InstalledApp(nil), s.items...)
	return res
}

// Apps returns the current app set in discovery order.
func (s *Session) Apps() []apps.InstalledApp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apps.InstalledApp(nil), s.items...)
}

// App looks up an app by id.
func (s *Session) App(id string) (apps.InstalledApp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.items {
		if app.ID == id {
			return app, true
		}
	}
	return apps.InstalledApp{}, false
}

// Find resolves ref as an id first, then as a case-insensitive name, then
// as a unique name prefix.
func (s *Session) Find(ref string) (apps.InstalledApp, error) {
	if app, ok := s.App(ref); ok {
		return app, nil
	}
	needle := strings.ToLower(strings.TrimSpace(ref))
	var prefixed []apps.InstalledApp
	for _, app := range s.Apps() {
		name := strings.ToLower(app.Name)
		if name == needle {
			return app, nil
		}
		if strings.HasPrefix(name, needle) {
			prefixed = append(prefixed, app)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], nil
	}
	if len(prefixed) > 1 {
		return apps.InstalledApp{}, fmt.Errorf("%q matches %d apps, use the id", ref, len(prefixed))
	}
	return apps.InstalledApp{}, fmt.Errorf("%w: %s", ErrUnknownApp, ref)
}

// Launch activates app. In blind mode the first activation only announces
// the app; activating the same app again launches it. On desktop the app
// shows as starting until a poll sees it running.
func (s *Session) Launch(ctx context.Context, app apps.InstalledApp) (LaunchOutcome, error) {
	s.mu.Lock()
	if s.mode == apps.ModeBlind {
		if s.pendingBlind != app.ID {
			s.pendingBlind = app.ID
			s.mu.Unlock()
			msg := s.catalog.T(i18n.BlindConfirm, app.Name)
			if s.announcer != nil {
				s.announcer.Announce(msg)
			}
			return LaunchOutcome{AppID: app.ID, Message: msg}, nil
		}
		s.pendingBlind = ""
	}
	s.mu.Unlock()

	desktop := s.loop.Active()
	if desktop {
		s.loop.Reconciler().MarkStarting(app.ID, s.now())
	}
	err := s.capability.Launch(ctx, app)
	s.metrics.RecordLaunch(err)
	if err != nil {
		if desktop {
			s.loop.Reconciler().CancelStarting(app.ID)
		}
		s.logger.Warn("launch failed", zap.String("app", app.ID), zap.Error(err))
		return LaunchOutcome{AppID: app.ID, Message: launchMessage(err, s.catalog, app)}, err
	}

	if desktop {
		s.loop.PokeAfterLaunch()
	}
	s.logger.Info("app launched", zap.String("app", app.ID))
	return LaunchOutcome{Launched: true, AppID: app.ID}, nil
}

// LaunchID is Launch for an id.
func (s *Session) LaunchID(ctx context.Context, id string) (LaunchOutcome, error) {
	app, ok := s.App(id)
	if !ok {
		return LaunchOutcome{AppID: id}, fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	return s.Launch(ctx, app)
}

// PendingConfirm is the app waiting for a second activation in blind mode.
func (s *Session) PendingConfirm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingBlind
}

func launchMessage(err error, cat *i18n.Catalog, app apps.InstalledApp) string {
	var le *apps.LaunchError
	if errors.As(err, &le) {
		return le.Message
	}
	return cat.T(i18n.LaunchFailed, app.Name)
}

// Stop force-stops the given apps. Unknown ids are ignored.
func (s *Session) Stop(ctx context.Context, ids []string) reconcile.StopReport {
	byID := apps.Index(s.Apps())
	targets := make([]apps.InstalledApp, 0, len(ids))
	for _, id := range ids {
		if app, ok := byID[id]; ok {
			targets = append(targets, app)
		}
	}
	return s.loop.StopApps(ctx, targets)
}

// StopRecommended stops every app the last poll flagged.
func (s *Session) StopRecommended(ctx context.Context) reconcile.StopReport {
	return s.loop.StopApps(ctx, s.Recommended())
}

// StopNotice returns the alert for a partial stop, or empty strings when
// every app stopped.
func (s *Session) StopNotice(report reconcile.StopReport) (title, message string) {
	if report.Failed == 0 {
		return "", ""
	}
	return s.catalog.T(i18n.StopPartialTitle), s.catalog.T(i18n.StopPartialMessage, report.Failed)
}

// TogglePin pins or unpins id and returns the new pinned state.
func (s *Session) TogglePin(id string) (bool, error) {
	if _, ok := s.App(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	return s.prefs.TogglePin(id), nil
}

// Move places fromID at toID's position in the order.
func (s *Session) Move(fromID, toID string) bool {
	return s.prefs.Move(fromID, toID)
}

// ResetOrder restores discovery order.
func (s *Session) ResetOrder() {
	s.prefs.ResetOrder()
}

// SetGroup overrides the group of id.
func (s *Session) SetGroup(id string, group apps.GroupKey) error {
	if _, ok := s.App(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	s.prefs.SetGroup(id, group)
	return nil
}

// GroupOf returns the group app is shown under, honoring overrides.
func (s *Session) GroupOf(app apps.InstalledApp) apps.GroupKey {
	return s.prefs.ResolveGroup(app)
}

// ClearGroup removes the override of id.
func (s *Session) ClearGroup(id string) {
	s.prefs.ClearGroup(id)
}

// Mode returns the accessibility mode.
func (s *Session) Mode() apps.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the accessibility mode. Any pending blind confirmation
// is dropped.
func (s *Session) SetMode(m apps.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = apps.ParseMode(string(m))
	s.pendingBlind = ""
}

// CycleMode advances to the next mode and returns it.
func (s *Session) CycleMode() apps.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Next()
	s.pendingBlind = ""
	return s.mode
}

// Query returns the search query.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// ActiveGroup returns the selected nav entry, "all" or a group key.
func (s *Session) ActiveGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeGroup
}

// SetActiveGroup selects a nav entry.
func (s *Session) SetActiveGroup(group string) error {
	group = strings.ToLower(strings.TrimSpace(group))
	if group == "" {
		group = prefs.AllGroups
	}
	if group != prefs.AllGroups {
		if _, err := apps.ParseGroup(group); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGroup = group
	return nil
}

// NavCollapsed reports the sidebar state.
func (s *Session) NavCollapsed() bool {
	return s.prefs.Snapshot().NavCollapsed
}

// ToggleNav flips the sidebar state.
func (s *Session) ToggleNav() bool {
	return s.prefs.ToggleNav()
}

// News returns headlines for category.
func (s *Session) News(ctx context.Context, category news.Category) (news.Result, error) {
	return s.news.Hot(ctx, category)
}

// NewsNotice is the panel message for a news lookup, or "" when there is
// something to show.
func (s *Session) NewsNotice(res news.Result, err error) string {
	switch {
	case err != nil:
		return s.catalog.T(i18n.NewsFailed)
	case len(res.Items) == 0:
		return s.catalog.T(i18n.NewsEmpty)
	}
	return ""
}

// Layout projects the current app set through the preferences and the
// session query.
func (s *Session) Layout() prefs.Layout {
	return s.LayoutFor(s.Query())
}

// LayoutFor is Layout with an explicit query.
func (s *Session) LayoutFor(query string) prefs.Layout {
	return s.prefs.Layout(s.Apps(), query)
}

// Runtime is the status to show for app.
func (s *Session) Runtime(app apps.InstalledApp) apps.RuntimeStat {
	return s.loop.Reconciler().Resolve(app, s.now())
}

// Stopping reports whether a stop is in flight for id.
func (s *Session) Stopping(id string) bool {
	return s.loop.Reconciler().Stopping(id)
}

// Summary counts the current apps per runtime status.
func (s *Session) Summary() reconcile.Summary {
	return s.loop.Reconciler().Summary(s.Apps(), s.now())
}

// Recommended returns the apps the last poll suggested closing.
func (s *Session) Recommended() []apps.InstalledApp {
	return s.loop.Reconciler().Recommended(s.Apps())
}

// RuntimeEntry pairs an app with its resolved runtime.
type RuntimeEntry struct {
	App      apps.InstalledApp `json:"app"`
	Runtime  apps.RuntimeStat  `json:"runtime"`
	Stopping bool              `json:"stopping,omitempty"`
}

// RuntimeView resolves every current app at one instant.
func (s *Session) RuntimeView() []RuntimeEntry {
	now := s.now()
	rec := s.loop.Reconciler()
	items := s.Apps()
	out := make([]RuntimeEntry, 0, len(items))
	for _, app := range items {
		out = append(out, RuntimeEntry{
			App:      app,
			Runtime:  rec.Resolve(app, now),
			Stopping: rec.Stopping(app.ID),
		})
	}
	return out
}

// Close flushes pending preference writes.
func (s *Session) Close() {
	s.prefs.Close()
}
