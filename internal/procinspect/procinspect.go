// Package procinspect maps running OS processes onto discovered apps and
// stops them on request.
package procinspect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

// ErrUnsupported is returned where process inspection is unavailable.
var ErrUnsupported = errors.New("procinspect: process inspection not supported on this platform")

// Process is one OS process as seen by a Source.
type Process struct {
	PID  int
	Exe  string
	Name string
	// CPUTime is cumulative user+system time in seconds.
	CPUTime  float64
	RSSBytes uint64
	// StartTime is when the process started. The zero value means the
	// source does not know.
	StartTime time.Time
}

// Source enumerates processes.
type Source interface {
	Processes(ctx context.Context) ([]Process, error)
}

// Signaler terminates a process.
type Signaler interface {
	Terminate(pid int) error
}

// Policy decides whether a running app should be suggested for closing.
type Policy interface {
	Recommend(stat apps.RuntimeStat) (bool, string)
}

// ThresholdPolicy recommends closing apps at or above either threshold.
type ThresholdPolicy struct {
	CPUPercent float64
	MemoryMB   float64
}

func (p ThresholdPolicy) Recommend(stat apps.RuntimeStat) (bool, string) {
	if stat.Status != apps.StatusRunning {
		return false, ""
	}
	switch {
	case p.CPUPercent > 0 && stat.CPUUsage >= p.CPUPercent:
		return true, fmt.Sprintf("high CPU usage (%.0f%%)", stat.CPUUsage)
	case p.MemoryMB > 0 && stat.MemoryUsageMB >= p.MemoryMB:
		return true, fmt.Sprintf("high memory usage (%.0f MB)", stat.MemoryUsageMB)
	}
	return false, ""
}

// Inspector computes per-app runtime stats from a process Source.
type Inspector struct {
	source   Source
	signaler Signaler
	policy   Policy
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	prev map[int]cpuSample
}

type cpuSample struct {
	cpu float64
	at  time.Time
}

// Option configures an Inspector.
type Option func(*Inspector)

func WithSource(s Source) Option     { return func(i *Inspector) { i.source = s } }
func WithSignaler(s Signaler) Option { return func(i *Inspector) { i.signaler = s } }
func WithPolicy(p Policy) Option     { return func(i *Inspector) { i.policy = p } }
func WithLogger(l *zap.Logger) Option {
	return func(i *Inspector) {
		if l != nil {
			i.logger = l
		}
	}
}
func WithClock(now func() time.Time) Option { return func(i *Inspector) { i.now = now } }

// New returns an Inspector over the platform's process table.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		source:   defaultSource(),
		signaler: systemSignaler{},
		policy:   ThresholdPolicy{CPUPercent: 50, MemoryMB: 1024},
		logger:   zap.NewNop(),
		now:      time.Now,
		prev:     make(map[int]cpuSample),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Stats returns one RuntimeStat per app, in the order of items. Apps with
// no matching process are reported stopped.
func (i *Inspector) Stats(ctx context.Context, items []apps.InstalledApp) ([]apps.RuntimeStat, error) {
	procs, err := i.source.Processes(ctx)
	if err != nil {
		return nil, err
	}
	now := i.now()
	owners := assign(items, procs)

	i.mu.Lock()
	next := make(map[int]cpuSample, len(procs))
	stats := make([]apps.RuntimeStat, len(items))
	for idx, app := range items {
		stats[idx] = apps.StoppedStat(app.ID)
	}
	for _, p := range procs {
		idx, ok := owners[p.PID]
		if !ok {
			continue
		}
		next[p.PID] = cpuSample{cpu: p.CPUTime, at: now}

		s := &stats[idx]
		s.Status = apps.StatusRunning
		s.ProcessIDs = append(s.ProcessIDs, p.PID)
		s.MemoryUsageMB += float64(p.RSSBytes) / (1024 * 1024)
		s.CPUUsage += i.cpuPercent(p, now)
	}
	i.prev = next
	i.mu.Unlock()

	for idx := range stats {
		s := &stats[idx]
		s.CPUUsage = round1(s.CPUUsage)
		s.MemoryUsageMB = round1(s.MemoryUsageMB)
		if i.policy != nil {
			s.RecommendedToClose, s.RecommendationReason = i.policy.Recommend(*s)
		}
	}
	return stats, nil
}

// cpuPercent is the CPU use of p since the previous poll. A process seen
// for the first time is averaged over its lifetime, the way ps reports
// %CPU, so a single poll still ranks busy processes. Callers hold i.mu.
func (i *Inspector) cpuPercent(p Process, now time.Time) float64 {
	if prev, seen := i.prev[p.PID]; seen {
		elapsed := now.Sub(prev.at).Seconds()
		if elapsed <= 0 || p.CPUTime < prev.cpu {
			return 0
		}
		return (p.CPUTime - prev.cpu) / elapsed * 100
	}
	if p.StartTime.IsZero() {
		return 0
	}
	lifetime := now.Sub(p.StartTime).Seconds()
	if lifetime <= 0 {
		return 0
	}
	return p.CPUTime / lifetime * 100
}

// ForceStop terminates pids, or every process matching app when pids is
// empty. All pids are attempted; failures are joined into one error.
func (i *Inspector) ForceStop(ctx context.Context, app apps.InstalledApp, pids []int) error {
	if len(pids) == 0 {
		procs, err := i.source.Processes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list processes: %w", err)
		}
		for pid := range assign([]apps.InstalledApp{app}, procs) {
			pids = append(pids, pid)
		}
	}
	if len(pids) == 0 {
		return nil
	}

	var errs []error
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := i.signaler.Terminate(pid); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", pid, err))
			continue
		}
		i.logger.Debug("terminated process", zap.String("app", app.ID), zap.Int("pid", pid))
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop %s: %w", app.Name, errors.Join(errs...))
	}
	return nil
}

// assign maps pid to the index of the app that owns it. An exact
// executable (or bundle) path match beats a match on the executable name
// carried in a "desktop:<exe>" package name.
func assign(items []apps.InstalledApp, procs []Process) map[int]int {
	byPath := make(map[string]int)
	var bundles []struct {
		prefix string
		idx    int
	}
	byName := make(map[string]int)
	for idx, app := range items {
		if app.ExecutablePath != "" {
			p := normPath(app.ExecutablePath)
			if strings.HasSuffix(p, ".app") {
				bundles = append(bundles, struct {
					prefix string
					idx    int
				}{p + "/", idx})
			} else if _, dup := byPath[p]; !dup {
				byPath[p] = idx
			}
		}
		if name, ok := strings.CutPrefix(app.PackageName, "desktop:"); ok && name != "" {
			name = strings.ToLower(name)
			if _, dup := byName[name]; !dup {
				byName[name] = idx
			}
		}
	}

	owners := make(map[int]int)
	for _, p := range procs {
		exe := normPath(p.Exe)
		if idx, ok := byPath[exe]; ok && exe != "" {
			owners[p.PID] = idx
			continue
		}
		matched := false
		for _, b := range bundles {
			if strings.HasPrefix(exe, b.prefix) {
				owners[p.PID] = b.idx
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, candidate := range []string{filepath.Base(exe), strings.ToLower(p.Name)} {
			if candidate == "" || candidate == "." {
				continue
			}
			if idx, ok := byName[candidate]; ok {
				owners[p.PID] = idx
				break
			}
		}
	}
	return owners
}

func normPath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ToLower(filepath.ToSlash(p))
	return strings.TrimSuffix(p, " (deleted)")
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
