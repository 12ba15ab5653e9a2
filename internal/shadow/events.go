package shadow

// EventKind names an event for logs and the journal.
type EventKind string

// Event kinds.
const (
	KindDelta          EventKind = "delta"
	KindGetAccepted    EventKind = "get_accepted"
	KindGetRejected    EventKind = "get_rejected"
	KindUpdateAccepted EventKind = "update_accepted"
	KindUpdateRejected EventKind = "update_rejected"
	KindConnected      EventKind = "connected"
	KindPublishResult  EventKind = "publish_result"
)

// Event is an input to the reducer.
type Event interface {
	Kind() EventKind
}

// Delta carries desired-but-not-reported state pushed by the cloud.
type Delta struct {
	Version     Version
	HasVersion  bool
	Fragment    DesiredFragment
	ClientToken string
}

// ReportedFields is the reported section of a fetched document.
// Nil fields were absent.
type ReportedFields struct {
	Angle         *int
	Emotion       *string
	HumidityRange *string
	Raw           *int
	Percent       *int
}

// Document is a fetched shadow.
type Document struct {
	Version    Version
	HasVersion bool

	// HasState is false when the document carried no state object.
	HasState bool

	// Reported is nil when state carried no reported object.
	Reported *ReportedFields

	// Desired is nil when state.desired was absent, null or empty.
	Desired *DesiredFragment
}

// GetAccepted carries the full shadow in response to a GET.
type GetAccepted struct {
	Document    Document
	ClientToken string
}

// Rejection is the error body of a rejected GET or update.
type Rejection struct {
	Code        int
	Message     string
	ClientToken string
}

// GetRejected reports a failed GET. Code 404 means the shadow does not exist yet.
type GetRejected struct {
	Rejection
}

// UpdateAccepted confirms a report.
type UpdateAccepted struct {
	Version     Version
	HasVersion  bool
	ClientToken string
}

// UpdateRejected reports a refused report. Code 409 is a version conflict.
type UpdateRejected struct {
	Rejection
}

// Connected is raised locally each time the broker session is established.
type Connected struct{}

// PublishResult feeds the local outcome of a PublishReport intent back
// into the reducer.
type PublishResult struct {
	Trigger Trigger
	Range   HumidityRange
	OK      bool
	Err     error
}

func (Delta) Kind() EventKind          { return KindDelta }
func (GetAccepted) Kind() EventKind    { return KindGetAccepted }
func (GetRejected) Kind() EventKind    { return KindGetRejected }
func (UpdateAccepted) Kind() EventKind { return KindUpdateAccepted }
func (UpdateRejected) Kind() EventKind { return KindUpdateRejected }
func (Connected) Kind() EventKind      { return KindConnected }
func (PublishResult) Kind() EventKind  { return KindPublishResult }

// EventVersion returns the version carried by ev, if any.
func EventVersion(ev Event) (Version, bool) {
	switch e := ev.(type) {
	case Delta:
		return e.Version, e.HasVersion
	case GetAccepted:
		return e.Document.Version, e.Document.HasVersion
	case UpdateAccepted:
		return e.Version, e.HasVersion
	default:
		return 0, false
	}
}

// EventClientToken returns the client token echoed by the cloud, if any.
func EventClientToken(ev Event) string {
	switch e := ev.(type) {
	case Delta:
		return e.ClientToken
	case GetAccepted:
		return e.ClientToken
	case GetRejected:
		return e.ClientToken
	case UpdateAccepted:
		return e.ClientToken
	case UpdateRejected:
		return e.ClientToken
	default:
		return ""
	}
}
