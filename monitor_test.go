package mosaic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorPhaseTimingRoundTrip(t *testing.T) {
	restore := nowForMonitor
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nowForMonitor = func() time.Time { return tick }
	defer func() { nowForMonitor = restore }()

	m := NewMonitor()
	m.StartPhase(PhaseProbing)
	tick = tick.Add(2 * time.Second)
	m.EndPhase(PhaseProbing)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded struct {
		Phases map[string]struct {
			Seconds float64 `json:"seconds"`
		} `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.InDelta(t, 2.0, decoded.Phases[PhaseProbing].Seconds, 1e-9)
}

func TestMonitorPartialRecordOnUnfinishedPhase(t *testing.T) {
	m := NewMonitor()
	m.StartPhase(PhaseRunning)
	// never call EndPhase: simulates a run that aborted mid-phase.

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded struct {
		Phases map[string]struct {
			Seconds float64 `json:"seconds"`
		} `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 0.0, decoded.Phases[PhaseRunning].Seconds)
}
