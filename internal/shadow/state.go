package shadow

import "time"

// Version is the shadow document version. Zero means unknown.
type Version uint64

// SensorSnapshot is one moisture sample.
type SensorSnapshot struct {
	Raw     int
	Percent int
	Range   HumidityRange
}

// ReportedSnapshot is what the device tells the cloud about itself.
type ReportedSnapshot struct {
	SensorSnapshot
	Angle   int
	Emotion Emotion
}

// DesiredFragment is the subset of state the cloud wants changed.
// Nil fields were absent from the message.
type DesiredFragment struct {
	Angle   *int
	Emotion *string
}

// Empty reports whether the fragment carries no recognised field.
func (f DesiredFragment) Empty() bool {
	return f.Angle == nil && f.Emotion == nil
}

// EngineState is the complete synchronisation state. It is a value type:
// the reducer takes a copy and returns the next state.
type EngineState struct {
	// KnownVersion is the last version adopted from an inbound message.
	KnownVersion Version

	// LastReportedRange is the bucket the cloud is believed to hold.
	LastReportedRange HumidityRange

	// LastTelemetryAt anchors the minimum spacing between range reports.
	LastTelemetryAt time.Time

	// LastProcessedEmotion is the label last applied to the servo.
	LastProcessedEmotion Emotion

	// ReportPendingFromCallback is set when an event-driven report was
	// accepted locally; the next detector pass consumes it instead of
	// evaluating a spontaneous report.
	ReportPendingFromCallback bool

	// LastGetRequestAt paces GET retries while the version is unknown.
	LastGetRequestAt time.Time

	// Angle mirrors the commanded servo pose.
	Angle int
}

// NewEngineState returns the boot state: version unknown, servo at the
// neutral pose.
func NewEngineState(poses Poses) EngineState {
	return EngineState{
		LastReportedRange:    RangeUnknown,
		LastProcessedEmotion: EmotionNeutral,
		Angle:                poses.Neutral,
	}
}

// Synced reports whether a version has been adopted from the cloud.
func (s EngineState) Synced() bool {
	return s.KnownVersion > 0
}

// ReportedEmotion returns the label to report: the processed label when it
// is canonical, otherwise the label derived from the current angle.
func (s EngineState) ReportedEmotion(poses Poses) Emotion {
	if s.LastProcessedEmotion.Canonical() {
		return s.LastProcessedEmotion
	}
	return poses.EmotionFor(s.Angle)
}

// Reported combines the live sensor sample with the servo mirror.
func (s EngineState) Reported(sensor SensorSnapshot, poses Poses) ReportedSnapshot {
	return ReportedSnapshot{
		SensorSnapshot: sensor,
		Angle:          s.Angle,
		Emotion:        s.ReportedEmotion(poses),
	}
}

// Observation is the per-call view of the outside world handed to the
// reducer and detector. It keeps both free of clocks and I/O.
type Observation struct {
	Now       time.Time
	Connected bool
	Sensor    SensorSnapshot
}
