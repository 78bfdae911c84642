package mosaic

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// Phase names used as keys in the Monitor's phase table, matching the
// driver's state machine (C9).
const (
	PhaseProbing     = "probing"
	PhasePlanning    = "planning"
	PhaseRunning     = "running"
	PhaseFinalizing  = "finalizing"
)

type phaseTiming struct {
	Start time.Time `json:"-"`
	End   time.Time `json:"-"`
}

// WorkerCounters mirrors spec.md §3's per-thread Monitor counters.
type WorkerCounters struct {
	ID                 int     `json:"id"`
	BlocksRead         int     `json:"blocksRead"`
	BytesRead          int64   `json:"bytesRead"`
	WaitOnCacheSeconds float64 `json:"waitOnCacheSeconds"`
	WaitOnQueueSeconds float64 `json:"waitOnQueueSeconds"`
}

// Monitor accumulates phase timings and per-worker counters during a run
// (C8). Each thread writes only to its own WorkerCounters slot; no
// inter-thread synchronization is needed on the hot path because the
// driver collects and serializes after every thread has joined.
type Monitor struct {
	RunID   string                 `json:"runId"`
	phases  map[string]*phaseTiming
	Workers []WorkerCounters       `json:"workers"`
	Config  map[string]interface{} `json:"config"`
	Plan    PlanSummary             `json:"plan"`
	Bands   []StatsReport           `json:"bandStats,omitempty"`
}

// PlanSummary is the "plan" object of the monitor JSON report (spec.md §6).
type PlanSummary struct {
	OutputBlocks int `json:"outputBlocks"`
	ReadTasks    int `json:"readTasks"`
	Inputs       int `json:"inputs"`
}

func NewMonitor() *Monitor {
	return &Monitor{
		RunID:  uuid.NewString(),
		phases: make(map[string]*phaseTiming),
	}
}

func (m *Monitor) StartPhase(name string) {
	m.phases[name] = &phaseTiming{Start: nowForMonitor()}
}

func (m *Monitor) EndPhase(name string) {
	if p, ok := m.phases[name]; ok {
		p.End = nowForMonitor()
	}
}

// nowForMonitor is the single indirection point for wall-clock time so
// that tests may substitute a deterministic clock without reaching for
// time.Now() directly throughout the package.
var nowForMonitor = time.Now

// MarshalJSON renders phases as {start,end,seconds} per spec.md §6,
// since time.Time isn't how the wire format expresses phase timing.
func (m *Monitor) MarshalJSON() ([]byte, error) {
	type phaseOut struct {
		Start   string  `json:"start"`
		End     string  `json:"end,omitempty"`
		Seconds float64 `json:"seconds,omitempty"`
	}
	phases := make(map[string]phaseOut, len(m.phases))
	for name, p := range m.phases {
		po := phaseOut{Start: p.Start.Format(time.RFC3339Nano)}
		if !p.End.IsZero() {
			po.End = p.End.Format(time.RFC3339Nano)
			po.Seconds = p.End.Sub(p.Start).Seconds()
		}
		phases[name] = po
	}
	return json.Marshal(struct {
		RunID   string                 `json:"runId"`
		Phases  map[string]phaseOut    `json:"phases"`
		Workers []WorkerCounters       `json:"workers"`
		Config  map[string]interface{} `json:"config"`
		Plan    PlanSummary            `json:"plan"`
		Bands   []StatsReport          `json:"bandStats,omitempty"`
	}{
		RunID: m.RunID, Phases: phases, Workers: m.Workers,
		Config: m.Config, Plan: m.Plan, Bands: m.Bands,
	})
}

// WriteFile serializes the monitor record to path, used when
// --monitorjson is set (spec.md §6). It is safe to call after a failed
// run: whatever phases completed are emitted, per spec.md §7's
// "partial monitor record" requirement.
func (m *Monitor) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
