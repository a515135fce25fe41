package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/procinspect"
)

// Inspector reports process stats and force-stops apps.
// *procinspect.Inspector satisfies it.
type Inspector interface {
	Stats(ctx context.Context, items []apps.InstalledApp) ([]apps.RuntimeStat, error)
	ForceStop(ctx context.Context, app apps.InstalledApp, pids []int) error
}

// StopReport summarizes one stop batch. Apps that stopped stay stopped
// even when others failed.
type StopReport struct {
	Requested int      `json:"requested"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
	Errors    []error  `json:"-"`
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// Desktop enables polling. Other runtimes have no process view.
	Desktop         bool
	Interval        time.Duration
	LaunchPokeDelay time.Duration
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Clock           func() time.Time
}

// Loop polls the inspector for the current app set and feeds the results
// to a Reconciler.
type Loop struct {
	rec       *Reconciler
	inspector Inspector
	desktop   bool
	interval  time.Duration
	pokeDelay time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu      sync.Mutex
	items   []apps.InstalledApp
	changed chan struct{}
	poke    chan struct{}
}

func NewLoop(rec *Reconciler, inspector Inspector, opts LoopOptions) *Loop {
	l := &Loop{
		rec:       rec,
		inspector: inspector,
		desktop:   opts.Desktop,
		interval:  opts.Interval,
		pokeDelay: opts.LaunchPokeDelay,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Clock,
		changed:   make(chan struct{}, 1),
		poke:      make(chan struct{}, 1),
	}
	if l.interval <= 0 {
		l.interval = DefaultPollInterval
	}
	if l.pokeDelay <= 0 {
		l.pokeDelay = DefaultLaunchPokeDelay
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Reconciler returns the state owner the loop feeds.
func (l *Loop) Reconciler() *Reconciler {
	return l.rec
}

// Active reports whether the loop polls at all.
func (l *Loop) Active() bool {
	return l.desktop
}

// SetApps replaces the polled app set.
func (l *Loop) SetApps(items []apps.InstalledApp) {
	l.mu.Lock()
	l.items = append([]apps.InstalledApp(nil), items...)
	l.mu.Unlock()
	signal(l.changed)
}

// Apps returns the polled app set.
func (l *Loop) Apps() []apps.InstalledApp {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]apps.InstalledApp(nil), l.items...)
}

// Poke requests an immediate out-of-band poll.
func (l *Loop) Poke() {
	signal(l.poke)
}

// PokeAfterLaunch schedules a poll shortly after a launch so a fast
// starting app shows as running quickly.
func (l *Loop) PokeAfterLaunch() {
	time.AfterFunc(l.pokeDelay, l.Poke)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done. While polling does not apply (not a
// desktop runtime, or no apps) state is cleared and the loop waits for
// the app set to change.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if !l.desktop || len(l.Apps()) == 0 {
			l.rec.Reset()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.changed:
				continue
			}
		}

		_ = l.PollOnce(ctx)

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-l.poke:
			timer.Stop()
		case <-l.changed:
			timer.Stop()
		}
	}
}

// PollOnce runs a single poll. Errors are logged and returned; state is
// left as it was.
func (l *Loop) PollOnce(ctx context.Context) error {
	items := l.Apps()
	if !l.desktop || len(items) == 0 {
		l.rec.Reset()
		return nil
	}

	start := l.now()
	stats, err := l.inspector.Stats(ctx, items)
	elapsed := l.now().Sub(start)
	if err != nil {
		if errors.Is(err, procinspect.ErrUnsupported) {
			l.logger.Debug("runtime stats unavailable", zap.Error(err))
		} else if ctx.Err() == nil {
			l.logger.Warn("runtime poll failed", zap.Error(err))
		}
		l.metrics.RecordPoll(nil, elapsed, err)
		return err
	}

	now := l.now()
	l.rec.ApplyPoll(stats, apps.IDs(items), now)
	l.metrics.RecordPoll(l.rec.Summary(items, now).Counts(), elapsed, nil)
	return nil
}

// StopApps force-stops targets one at a time. Failures are counted, not
// returned, and the batch always runs to completion. An immediate poll
// follows so the report reflects the new state.
func (l *Loop) StopApps(ctx context.Context, targets []apps.InstalledApp) StopReport {
	report := StopReport{Requested: len(targets)}
	if !l.desktop || len(targets) == 0 {
		return report
	}

	ids := apps.IDs(targets)
	l.rec.BeginStop(ids)
	for _, app := range targets {
		var pids []int
		if stat, ok := l.rec.Stat(app.ID); ok {
			pids = stat.ProcessIDs
		}
		err := l.inspector.ForceStop(ctx, app, pids)
		l.metrics.RecordStop(err)
		if err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, app.ID)
			report.Errors = append(report.Errors, err)
			l.logger.Warn("failed to stop app", zap.String("app", app.ID), zap.Error(err))
		}
	}
	l.rec.EndStop(ids)

	_ = l.PollOnce(ctx)
	return report
}
