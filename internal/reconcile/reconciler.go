// Package reconcile keeps an eventually consistent view of which apps are
// starting, running or stopped, combining optimistic launch markers with
// periodic process polls.
package reconcile

import (
	"sync"
	"time"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

// Defaults for the runtime loop.
const (
	DefaultStartingTimeout = 12 * time.Second
	DefaultPollInterval    = 2500 * time.Millisecond
	DefaultLaunchPokeDelay = 500 * time.Millisecond
)

// state is never modified after it is published; every intent builds a
// new one.
type state struct {
	stats      map[string]apps.RuntimeStat
	startingAt map[string]time.Time
	stopping   map[string]bool
}

func emptyState() *state {
	return &state{
		stats:      map[string]apps.RuntimeStat{},
		startingAt: map[string]time.Time{},
		stopping:   map[string]bool{},
	}
}

func (s *state) clone() *state {
	next := &state{
		stats:      make(map[string]apps.RuntimeStat, len(s.stats)),
		startingAt: make(map[string]time.Time, len(s.startingAt)),
		stopping:   make(map[string]bool, len(s.stopping)),
	}
	for k, v := range s.stats {
		next.stats[k] = v
	}
	for k, v := range s.startingAt {
		next.startingAt[k] = v
	}
	for k, v := range s.stopping {
		next.stopping[k] = v
	}
	return next
}

// Summary counts apps per status.
type Summary struct {
	Starting    int `json:"starting"`
	Running     int `json:"running"`
	Stopped     int `json:"stopped"`
	Recommended int `json:"recommended"`
}

// Counts returns the summary keyed by status.
func (s Summary) Counts() map[apps.Status]int {
	return map[apps.Status]int{
		apps.StatusStarting: s.Starting,
		apps.StatusRunning:  s.Running,
		apps.StatusStopped:  s.Stopped,
	}
}

// Reconciler owns runtime state. Mutations go through the intent methods;
// readers get projections of one consistent snapshot.
type Reconciler struct {
	timeout time.Duration

	mu sync.RWMutex
	st *state
}

// NewReconciler creates a reconciler whose starting markers expire after
// timeout. Zero means DefaultStartingTimeout.
func NewReconciler(timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultStartingTimeout
	}
	return &Reconciler{timeout: timeout, st: emptyState()}
}

func (r *Reconciler) snapshot() *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

func (r *Reconciler) update(fn func(next *state)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.st.clone()
	fn(next)
	r.st = next
}

// MarkStarting records an optimistic launch of id.
func (r *Reconciler) MarkStarting(id string, now time.Time) {
	r.update(func(next *state) {
		next.startingAt[id] = now
	})
}

// CancelStarting drops the starting marker for id, e.g. after a launch
// failed.
func (r *Reconciler) CancelStarting(id string) {
	r.update(func(next *state) {
		delete(next.startingAt, id)
	})
}

// ApplyPoll replaces the stats with a fresh poll. Starting markers are
// dropped once the app runs, leaves the live set, or is older than the
// timeout.
func (r *Reconciler) ApplyPoll(stats []apps.RuntimeStat, liveIDs []string, now time.Time) {
	live := make(map[string]bool, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = true
	}
	r.update(func(next *state) {
		next.stats = make(map[string]apps.RuntimeStat, len(stats))
		for _, s := range stats {
			if s.AppID == "" {
				continue
			}
			next.stats[s.AppID] = s.Clone()
		}
		for id, startedAt := range next.startingAt {
			switch {
			case !live[id]:
				delete(next.startingAt, id)
			case next.stats[id].Status == apps.StatusRunning:
				delete(next.startingAt, id)
			case now.Sub(startedAt) > r.timeout:
				delete(next.startingAt, id)
			}
		}
	})
}

// BeginStop marks ids as stopping.
func (r *Reconciler) BeginStop(ids []string) {
	r.update(func(next *state) {
		for _, id := range ids {
			next.stopping[id] = true
		}
	})
}

// EndStop clears the stopping flag and any starting marker for ids.
func (r *Reconciler) EndStop(ids []string) {
	r.update(func(next *state) {
		for _, id := range ids {
			delete(next.stopping, id)
			delete(next.startingAt, id)
		}
	})
}

// Reset drops all runtime state.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st = emptyState()
}

// Resolve is the status shown for app at now. A running poll result wins;
// otherwise a starting marker no older than the timeout shows starting;
// otherwise the last poll result, or stopped.
func (r *Reconciler) Resolve(app apps.InstalledApp, now time.Time) apps.RuntimeStat {
	return r.snapshot().resolve(app.ID, now, r.timeout)
}

func (s *state) resolve(id string, now time.Time, timeout time.Duration) apps.RuntimeStat {
	stat, ok := s.stats[id]
	if ok && stat.Status == apps.StatusRunning {
		return stat.Clone()
	}
	if !ok {
		stat = apps.StoppedStat(id)
	}
	if startedAt, starting := s.startingAt[id]; starting && now.Sub(startedAt) <= timeout {
		stat = stat.Clone()
		stat.Status = apps.StatusStarting
		return stat
	}
	return stat.Clone()
}

// Stat returns the last poll result for id.
func (r *Reconciler) Stat(id string) (apps.RuntimeStat, bool) {
	stat, ok := r.snapshot().stats[id]
	if !ok {
		return apps.RuntimeStat{}, false
	}
	return stat.Clone(), true
}

// Summary counts items by resolved status.
func (r *Reconciler) Summary(items []apps.InstalledApp, now time.Time) Summary {
	s := r.snapshot()
	var sum Summary
	for _, app := range items {
		stat := s.resolve(app.ID, now, r.timeout)
		switch stat.Status {
		case apps.StatusRunning:
			sum.Running++
		case apps.StatusStarting:
			sum.Starting++
		default:
			sum.Stopped++
		}
		if s.stats[app.ID].RecommendedToClose {
			sum.Recommended++
		}
	}
	return sum
}

// Recommended returns the items the last poll flagged for closing, in
// input order.
func (r *Reconciler) Recommended(items []apps.InstalledApp) []apps.InstalledApp {
	s := r.snapshot()
	var out []apps.InstalledApp
	for _, app := range items {
		if s.stats[app.ID].RecommendedToClose {
			out = append(out, app)
		}
	}
	return out
}

// Stopping reports whether a stop is in progress for id.
func (r *Reconciler) Stopping(id string) bool {
	return r.snapshot().stopping[id]
}
