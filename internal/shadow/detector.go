package shadow

import "time"

// Detector defaults.
const (
	DefaultMinReportInterval = 10 * time.Second
	DefaultGetRetryInterval  = 60 * time.Second
)

// Detector decides, once per tick, whether a humidity bucket change
// warrants a spontaneous report.
type Detector struct {
	// MinReportInterval is the minimum time between range reports.
	MinReportInterval time.Duration

	// GetRetryInterval paces GET requests while the version is unknown.
	GetRetryInterval time.Duration

	reports ReportBuilder
	logger  Logger
}

// NewDetector creates a Detector with the default intervals.
func NewDetector(reports ReportBuilder, logger Logger) *Detector {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Detector{
		MinReportInterval: DefaultMinReportInterval,
		GetRetryInterval:  DefaultGetRetryInterval,
		reports:           reports,
		logger:            logger,
	}
}

// Evaluate runs after the inbox has been drained for the tick.
func (d *Detector) Evaluate(state EngineState, obs Observation) (EngineState, []Intent) {
	current := obs.Sensor.Range

	// An event-driven report just went out and already carries this sample.
	if state.ReportPendingFromCallback {
		state.LastReportedRange = current
		state.LastTelemetryAt = obs.Now
		state.ReportPendingFromCallback = false
		return state, nil
	}

	if !obs.Connected || !current.Known() || current == state.LastReportedRange {
		return state, nil
	}

	if obs.Now.Sub(state.LastTelemetryAt) < d.MinReportInterval {
		d.logger.Debug("humidity range changed, report rate limited",
			"from", state.LastReportedRange.String(),
			"to", current.String(),
		)
		return state, nil
	}

	if state.Synced() {
		d.logger.Info("humidity range changed",
			"from", state.LastReportedRange.String(),
			"to", current.String(),
		)
		return state, []Intent{PublishReport{
			Trigger:  TriggerTelemetry,
			Document: d.reports.Build(state, obs.Sensor),
			Range:    current,
		}}
	}

	if state.LastGetRequestAt.IsZero() || obs.Now.Sub(state.LastGetRequestAt) >= d.GetRetryInterval {
		d.logger.Info("humidity range report deferred: shadow version unknown, requesting get")
		state.LastGetRequestAt = obs.Now
		return state, []Intent{RequestGet{Reason: "version unknown"}}
	}

	d.logger.Debug("humidity range report deferred: shadow version unknown")
	return state, nil
}
