package shadow

// Trigger records why a report was produced.
type Trigger string

// Report triggers.
const (
	TriggerDelta     Trigger = "delta"
	TriggerGet       Trigger = "get"
	TriggerTelemetry Trigger = "telemetry"
)

// Intent is a side effect requested by the reducer or detector and
// executed, in order, by the driver.
type Intent interface {
	intentMarker()
}

// SetAngle commands the servo.
type SetAngle struct {
	Angle int
}

// PublishReport publishes Document to the update topic. The driver must feed
// a PublishResult carrying Trigger and Range back into the reducer.
type PublishReport struct {
	Trigger  Trigger
	Document ReportDocument
	Range    HumidityRange
}

// RequestGet publishes a GET request. Failures are logged, not retried inline.
type RequestGet struct {
	Reason string
}

func (SetAngle) intentMarker()      {}
func (PublishReport) intentMarker() {}
func (RequestGet) intentMarker()    {}
