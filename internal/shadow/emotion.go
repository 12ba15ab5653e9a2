package shadow

// Emotion is the label shown by the servo pose.
type Emotion int

// Emotion labels. The three canonical labels map 1:1 to a pose angle;
// EmotionCustom is derived for any other angle.
const (
	EmotionNeutral Emotion = iota
	EmotionFeliz
	EmotionTriste
	EmotionCustom
)

// Servo travel limits in degrees.
const (
	MinAngle = 0
	MaxAngle = 180
)

// String returns the wire token for the label.
func (e Emotion) String() string {
	switch e {
	case EmotionFeliz:
		return "FELIZ"
	case EmotionTriste:
		return "TRISTE"
	case EmotionNeutral:
		return "NEUTRAL"
	default:
		return "CUSTOM"
	}
}

// Canonical reports whether e is tied to a fixed pose.
func (e Emotion) Canonical() bool {
	return e == EmotionFeliz || e == EmotionTriste || e == EmotionNeutral
}

// ParseEmotion resolves a canonical wire token.
// CUSTOM and unrecognized tokens return false.
func ParseEmotion(token string) (Emotion, bool) {
	switch token {
	case "FELIZ":
		return EmotionFeliz, true
	case "TRISTE":
		return EmotionTriste, true
	case "NEUTRAL":
		return EmotionNeutral, true
	default:
		return EmotionCustom, false
	}
}

// Poses holds the servo angle for each canonical label.
type Poses struct {
	Happy   int
	Sad     int
	Neutral int
}

// DefaultPoses returns the stock pose angles.
func DefaultPoses() Poses {
	return Poses{Happy: 180, Sad: 0, Neutral: 90}
}

// AngleFor returns the pose angle of a canonical label.
// The second result is false for EmotionCustom.
func (p Poses) AngleFor(e Emotion) (int, bool) {
	switch e {
	case EmotionFeliz:
		return p.Happy, true
	case EmotionTriste:
		return p.Sad, true
	case EmotionNeutral:
		return p.Neutral, true
	default:
		return 0, false
	}
}

// EmotionFor returns the canonical label whose pose is angle, or EmotionCustom.
func (p Poses) EmotionFor(angle int) Emotion {
	switch angle {
	case p.Happy:
		return EmotionFeliz
	case p.Sad:
		return EmotionTriste
	case p.Neutral:
		return EmotionNeutral
	default:
		return EmotionCustom
	}
}

// ClampAngle constrains angle to the servo's travel.
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}
