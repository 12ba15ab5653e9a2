package shadow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncedState() EngineState {
	s := NewEngineState(DefaultPoses())
	s.KnownVersion = 8
	s.LastReportedRange = RangeOptimal
	return s
}

func TestDetector_PendingFlagConsumesTick(t *testing.T) {
	d := NewDetector(testReports(), nil)
	state := syncedState()
	state.ReportPendingFromCallback = true

	next, intents := d.Evaluate(state, connectedObs(t0, RangeVeryWet))

	assert.Empty(t, intents)
	assert.False(t, next.ReportPendingFromCallback)
	assert.Equal(t, RangeVeryWet, next.LastReportedRange)
	assert.Equal(t, t0, next.LastTelemetryAt)
}

func TestDetector_NoReport(t *testing.T) {
	tests := []struct {
		name  string
		state func() EngineState
		obs   Observation
	}{
		{
			name:  "disconnected",
			state: syncedState,
			obs:   Observation{Now: t0, Sensor: SensorSnapshot{Range: RangeDry}},
		},
		{
			name:  "range unknown",
			state: syncedState,
			obs:   connectedObs(t0, RangeUnknown),
		},
		{
			name:  "range unchanged",
			state: syncedState,
			obs:   connectedObs(t0, RangeOptimal),
		},
		{
			name: "rate limited",
			state: func() EngineState {
				s := syncedState()
				s.LastTelemetryAt = t0.Add(-9 * time.Second)
				return s
			},
			obs: connectedObs(t0, RangeDry),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(testReports(), nil)
			state := tt.state()
			next, intents := d.Evaluate(state, tt.obs)
			assert.Empty(t, intents)
			assert.Equal(t, state, next)
		})
	}
}

func TestDetector_ReportsRangeChange(t *testing.T) {
	d := NewDetector(testReports(), nil)
	state := syncedState()
	state.LastTelemetryAt = t0.Add(-10 * time.Second)

	next, intents := d.Evaluate(state, connectedObs(t0, RangeDry))

	require.Len(t, intents, 1)
	report, ok := intents[0].(PublishReport)
	require.True(t, ok)
	assert.Equal(t, TriggerTelemetry, report.Trigger)
	assert.Equal(t, RangeDry, report.Range)
	assert.Equal(t, Version(8), report.Document.Version)
	assert.Equal(t, "SECO", report.Document.State.Reported.HumidityRange)

	// Bookkeeping waits for the publish result.
	assert.Equal(t, RangeOptimal, next.LastReportedRange)
}

func TestDetector_TransitionsWithinIntervalReportOnce(t *testing.T) {
	r := newTestReducer()
	d := NewDetector(testReports(), nil)
	state := syncedState()

	// First transition reports and is confirmed.
	state, intents := d.Evaluate(state, connectedObs(t0, RangeDry))
	require.Len(t, reportsIn(intents), 1)
	state, _, err := r.Reduce(state, PublishResult{Trigger: TriggerTelemetry, Range: RangeDry, OK: true}, connectedObs(t0, RangeDry))
	require.NoError(t, err)

	// Second transition 3s later is rate limited.
	later := t0.Add(3 * time.Second)
	state, intents = d.Evaluate(state, connectedObs(later, RangeVeryDry))
	assert.Empty(t, intents)

	// It goes out once the interval has elapsed.
	_, intents = d.Evaluate(state, connectedObs(t0.Add(10*time.Second), RangeVeryDry))
	reports := reportsIn(intents)
	require.Len(t, reports, 1)
	assert.Equal(t, RangeVeryDry, reports[0].Range)
}

func TestDetector_UnsyncedRequestsGetWithRetryInterval(t *testing.T) {
	d := NewDetector(testReports(), nil)
	state := NewEngineState(DefaultPoses())

	state, intents := d.Evaluate(state, connectedObs(t0, RangeDry))
	assert.Equal(t, []Intent{RequestGet{Reason: "version unknown"}}, intents)
	assert.Equal(t, t0, state.LastGetRequestAt)

	state, intents = d.Evaluate(state, connectedObs(t0.Add(30*time.Second), RangeDry))
	assert.Empty(t, intents)

	state, intents = d.Evaluate(state, connectedObs(t0.Add(60*time.Second), RangeDry))
	assert.Len(t, getsIn(intents), 1)
	assert.Equal(t, t0.Add(60*time.Second), state.LastGetRequestAt)
}

func TestDetector_CustomIntervals(t *testing.T) {
	d := NewDetector(testReports(), nil)
	d.MinReportInterval = time.Second
	state := syncedState()
	state.LastTelemetryAt = t0

	_, intents := d.Evaluate(state, connectedObs(t0.Add(time.Second), RangeWet))
	assert.Len(t, reportsIn(intents), 1)
}
