package apps

// Status is the per-app runtime state shown in the launcher.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// RuntimeStat is a transient, desktop-only view of an app's processes.
// It is recomputed every poll and never persisted.
type RuntimeStat struct {
	AppID                string  `json:"appId"`
	Status               Status  `json:"status"`
	CPUUsage             float64 `json:"cpuUsage"`
	MemoryUsageMB        float64 `json:"memoryUsageMB"`
	ProcessIDs           []int   `json:"processIds"`
	RecommendedToClose   bool    `json:"recommendedToClose"`
	RecommendationReason string  `json:"recommendationReason,omitempty"`
}

// StoppedStat is the zero runtime for an app with no processes.
func StoppedStat(appID string) RuntimeStat {
	return RuntimeStat{
		AppID:      appID,
		Status:     StatusStopped,
		ProcessIDs: []int{},
	}
}

// Clone returns a deep copy.
func (s RuntimeStat) Clone() RuntimeStat {
	pids := make([]int, len(s.ProcessIDs))
	copy(pids, s.ProcessIDs)
	s.ProcessIDs = pids
	return s
}

// Mode is the accessibility mode of the launcher.
type Mode string

const (
	ModeNormal  Mode = "normal"
	ModeElderly Mode = "elderly"
	ModeBlind   Mode = "blind"
)

// Modes lists every mode in switcher order.
var Modes = []Mode{ModeNormal, ModeElderly, ModeBlind}

// ParseMode returns the mode named s, or ModeNormal for unknown names.
func ParseMode(s string) Mode {
	for _, m := range Modes {
		if string(m) == s {
			return m
		}
	}
	return ModeNormal
}

// Next cycles to the following mode.
func (m Mode) Next() Mode {
	for i, candidate := range Modes {
		if candidate == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeNormal
}
