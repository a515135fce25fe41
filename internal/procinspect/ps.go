package procinspect

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/launchdeck/internal/platform"
)

// psArgs asks for pid, resident KiB, elapsed time, CPU time and the
// command path. comm goes last since it may contain spaces.
var psArgs = []string{"-axo", "pid=,rss=,etime=,time=,comm="}

// PSSource lists processes by running ps(1). It serves macOS, which has
// no /proc.
type PSSource struct {
	Runner platform.Runner
	Now    func() time.Time
}

func (s PSSource) Processes(ctx context.Context) ([]Process, error) {
	out, err := s.Runner.Output(ctx, "ps", psArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to run ps: %w", err)
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return parsePS(out, now), nil
}

// parsePS reads ps output in psArgs order. Malformed lines are skipped.
func parsePS(out []byte, now time.Time) []Process {
	var procs []Process
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		cols, comm, ok := splitColumns(sc.Text(), 4)
		if !ok || comm == "" {
			continue
		}
		pid, err := strconv.Atoi(cols[0])
		if err != nil {
			continue
		}
		rssKiB, err := strconv.ParseUint(cols[1], 10, 64)
		if err != nil {
			continue
		}
		elapsed, err := parseClock(cols[2])
		if err != nil {
			continue
		}
		cpu, err := parseClock(cols[3])
		if err != nil {
			continue
		}

		p := Process{
			PID:       pid,
			Name:      filepath.Base(comm),
			CPUTime:   cpu,
			RSSBytes:  rssKiB * 1024,
			StartTime: now.Add(-time.Duration(elapsed * float64(time.Second))),
		}
		if filepath.IsAbs(comm) {
			p.Exe = comm
		}
		procs = append(procs, p)
	}
	return procs
}

// splitColumns cuts n whitespace-separated columns off line and returns
// them with the remainder.
func splitColumns(line string, n int) ([]string, string, bool) {
	rest := strings.TrimSpace(line)
	cols := make([]string, 0, n)
	for len(cols) < n {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return nil, "", false
		}
		cols = append(cols, rest[:i])
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return cols, rest, true
}

// parseClock parses ps durations: [dd-][hh:]mm:ss with optional
// fractional seconds.
func parseClock(s string) (float64, error) {
	var days float64
	if d, rest, ok := strings.Cut(s, "-"); ok {
		v, err := strconv.Atoi(d)
		if err != nil {
			return 0, fmt.Errorf("bad day count in %q", s)
		}
		days, s = float64(v), rest
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad duration %q", s)
		}
		total = total*60 + v
	}
	return days*86400 + total, nil
}
