package shadow

import (
	"fmt"
)

// Rejection codes with dedicated handling.
const (
	CodeNotFound = 404
	CodeConflict = 409
)

// Reducer applies inbound shadow events to EngineState.
//
// Reduce never performs I/O and never reads a clock: time and connectivity
// arrive in the Observation, side effects leave as Intents. It only logs.
type Reducer struct {
	poses   Poses
	reports ReportBuilder
	logger  Logger
}

// NewReducer creates a Reducer. A nil logger discards output.
func NewReducer(reports ReportBuilder, logger Logger) *Reducer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Reducer{
		poses:   reports.Poses,
		reports: reports,
		logger:  logger,
	}
}

// Reduce returns the next state and the intents to execute, in order.
//
// On error the input state is returned unchanged with no intents.
func (r *Reducer) Reduce(state EngineState, ev Event, obs Observation) (EngineState, []Intent, error) {
	switch e := ev.(type) {
	case Delta:
		return r.onDelta(state, e, obs)
	case GetAccepted:
		next, intents := r.onGetAccepted(state, e, obs)
		return next, intents, nil
	case GetRejected:
		r.onGetRejected(e)
		return state, nil, nil
	case UpdateAccepted:
		return r.onUpdateAccepted(state, e), nil, nil
	case UpdateRejected:
		next, intents := r.onUpdateRejected(state, e, obs)
		return next, intents, nil
	case Connected:
		next, intents := r.requestGet(state, obs, "connected")
		return next, intents, nil
	case PublishResult:
		return r.onPublishResult(state, e, obs), nil, nil
	default:
		return state, nil, fmt.Errorf("%w: unsupported event %T", ErrMalformedEvent, ev)
	}
}

func (r *Reducer) onDelta(state EngineState, ev Delta, obs Observation) (EngineState, []Intent, error) {
	if !ev.HasVersion {
		r.logger.Warn("delta without version dropped")
		return state, nil, fmt.Errorf("%w: delta without version", ErrMalformedEvent)
	}

	state.KnownVersion = ev.Version
	r.logger.Info("delta received", "version", ev.Version)

	state, intents := r.applyFragment(state, ev.Fragment)

	// The report clears the delta on the service even when nothing changed.
	intents = append(intents, r.report(state, obs, TriggerDelta)...)
	return state, intents, nil
}

// applyFragment moves the servo towards a desired fragment.
//
// The angle step runs first. The emotion step then wins when it names a
// canonical label. The processed label always agrees with the final angle.
func (r *Reducer) applyFragment(state EngineState, frag DesiredFragment) (EngineState, []Intent) {
	var intents []Intent
	label := state.LastProcessedEmotion
	changed := false

	emotion, emotionOK := EmotionCustom, false
	if frag.Emotion != nil {
		emotion, emotionOK = ParseEmotion(*frag.Emotion)
	}

	if frag.Angle != nil {
		angle := ClampAngle(*frag.Angle)
		if angle != state.Angle {
			state.Angle = angle
			intents = append(intents, SetAngle{Angle: angle})
			changed = true
			if !emotionOK {
				label = r.poses.EmotionFor(angle)
			}
		}
	}

	if frag.Emotion != nil {
		if !emotionOK {
			r.logger.Warn("unknown emotion ignored", "emotion", *frag.Emotion)
		} else {
			target, _ := r.poses.AngleFor(emotion)
			if emotion != state.LastProcessedEmotion || state.Angle != target {
				if state.Angle != target {
					state.Angle = target
					intents = append(intents, SetAngle{Angle: target})
				}
				label = emotion
				changed = true
			}
		}
	}

	if changed {
		state.LastProcessedEmotion = label
		r.logger.Info("desired state applied", "angle", state.Angle, "emotion", label.String())
	} else {
		r.logger.Debug("desired state already applied")
	}

	return state, intents
}

func (r *Reducer) onGetAccepted(state EngineState, ev GetAccepted, obs Observation) (EngineState, []Intent) {
	doc := ev.Document

	if doc.HasVersion {
		if doc.Version > state.KnownVersion || state.KnownVersion == 0 {
			state.KnownVersion = doc.Version
			r.logger.Info("shadow version adopted from get", "version", doc.Version)
		} else {
			r.logger.Debug("stale get version ignored", "received", doc.Version, "current", state.KnownVersion)
		}
	}

	var intents []Intent
	needsReport := false

	switch {
	case !doc.HasState:
		r.logger.Info("shadow has no state, reporting current device state")
		needsReport = true

	case doc.Reported == nil:
		r.logger.Info("shadow has no reported state, reporting current device state")
		needsReport = true

	default:
		var synced []Intent
		state, synced = r.syncReported(state, *doc.Reported)
		intents = append(intents, synced...)

		if doc.Reported.HumidityRange == nil && obs.Sensor.Range.Known() {
			r.logger.Info("shadow has no humidity range, reporting current device state")
			needsReport = true
		}
	}

	if doc.HasState && doc.Desired != nil {
		var applied []Intent
		state, applied = r.applyFragment(state, *doc.Desired)
		intents = append(intents, applied...)
		needsReport = true
	}

	if needsReport {
		return state, append(intents, r.report(state, obs, TriggerGet)...)
	}

	// The fetch itself satisfies freshness.
	state.LastTelemetryAt = obs.Now
	return state, intents
}

// syncReported adopts the cloud's reported emotion, angle and range.
func (r *Reducer) syncReported(state EngineState, rep ReportedFields) (EngineState, []Intent) {
	var intents []Intent

	if rep.Emotion != nil {
		if emotion, ok := ParseEmotion(*rep.Emotion); ok && emotion != state.LastProcessedEmotion {
			state.LastProcessedEmotion = emotion
			if target, _ := r.poses.AngleFor(emotion); state.Angle != target {
				state.Angle = target
				intents = append(intents, SetAngle{Angle: target})
			}
			r.logger.Info("emotion synced from shadow", "emotion", emotion.String())
		}
	}

	// Angle sync is applied after emotion sync and takes priority.
	if rep.Angle != nil {
		if angle := ClampAngle(*rep.Angle); angle != state.Angle {
			state.Angle = angle
			state.LastProcessedEmotion = r.poses.EmotionFor(angle)
			intents = append(intents, SetAngle{Angle: angle})
			r.logger.Info("servo angle synced from shadow", "angle", angle)
		}
	}

	if rep.HumidityRange != nil {
		if rng := ParseHumidityRange(*rep.HumidityRange); rng.Known() && rng != state.LastReportedRange {
			state.LastReportedRange = rng
			r.logger.Info("humidity range synced from shadow", "range", rng.String())
		}
	}

	return state, intents
}

func (r *Reducer) onGetRejected(ev GetRejected) {
	if ev.Code == CodeNotFound {
		// No corrective publish: the shadow is created by the next report.
		r.logger.Warn("shadow not found", "code", ev.Code, "message", ev.Message)
		return
	}
	r.logger.Warn("shadow get rejected", "code", ev.Code, "message", ev.Message)
}

func (r *Reducer) onUpdateAccepted(state EngineState, ev UpdateAccepted) EngineState {
	if ev.HasVersion {
		state.KnownVersion = ev.Version
	}
	r.logger.Info("shadow update accepted",
		"version", state.KnownVersion,
		"client_token", ev.ClientToken,
	)
	return state
}

func (r *Reducer) onUpdateRejected(state EngineState, ev UpdateRejected, obs Observation) (EngineState, []Intent) {
	if ev.Code == CodeConflict {
		r.logger.Warn("shadow update rejected: version conflict, resynchronising",
			"version", state.KnownVersion,
			"client_token", ev.ClientToken,
		)
		return r.requestGet(state, obs, "version conflict")
	}
	r.logger.Warn("shadow update rejected",
		"code", ev.Code,
		"message", ev.Message,
		"client_token", ev.ClientToken,
	)
	return state, nil
}

func (r *Reducer) onPublishResult(state EngineState, ev PublishResult, obs Observation) EngineState {
	if !ev.OK {
		r.logger.Warn("shadow report not accepted", "trigger", string(ev.Trigger), "error", ev.Err)
		return state
	}

	switch ev.Trigger {
	case TriggerTelemetry:
		state.LastReportedRange = ev.Range
		state.LastTelemetryAt = obs.Now
	default:
		state.ReportPendingFromCallback = true
	}
	return state
}

// report returns the publish intent for the current state, or nothing when
// the transport is down.
func (r *Reducer) report(state EngineState, obs Observation, trigger Trigger) []Intent {
	if !obs.Connected {
		r.logger.Warn("shadow report skipped: not connected", "trigger", string(trigger))
		return nil
	}
	return []Intent{PublishReport{
		Trigger:  trigger,
		Document: r.reports.Build(state, obs.Sensor),
		Range:    obs.Sensor.Range,
	}}
}

func (r *Reducer) requestGet(state EngineState, obs Observation, reason string) (EngineState, []Intent) {
	state.LastGetRequestAt = obs.Now
	return state, []Intent{RequestGet{Reason: reason}}
}
