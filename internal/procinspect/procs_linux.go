//go:build linux

package procinspect

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// userHZ is the clock tick rate /proc/<pid>/stat start times are counted
// in. procfs assumes the same value.
const userHZ = 100

func defaultSource() Source { return procSource{} }

// procSource reads /proc through procfs. Processes that exit or deny
// access mid-scan are skipped.
type procSource struct{}

func (procSource) Processes(ctx context.Context) ([]Process, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var boot time.Time
	if st, err := fs.Stat(); err == nil && st.BootTime > 0 {
		boot = time.Unix(int64(st.BootTime), 0)
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		exe, _ := p.Executable()
		proc := Process{
			PID:      p.PID,
			Exe:      exe,
			Name:     stat.Comm,
			CPUTime:  stat.CPUTime(),
			RSSBytes: uint64(stat.ResidentMemory()),
		}
		if !boot.IsZero() {
			proc.StartTime = boot.Add(time.Duration(stat.Starttime) * time.Second / userHZ)
		}
		out = append(out, proc)
	}
	return out, nil
}
