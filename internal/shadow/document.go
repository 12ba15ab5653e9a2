package shadow

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ReportDocument is the JSON published to the update topic.
type ReportDocument struct {
	State       ReportState `json:"state"`
	Version     Version     `json:"version"`
	ClientToken string      `json:"clientToken,omitempty"`
}

// ReportState always carries desired as an explicit null so the service
// treats any pending delta as addressed.
type ReportState struct {
	Reported ReportedWire `json:"reported"`
	Desired  *struct{}    `json:"desired"`
}

// ReportedWire is the reported leaf object on the wire.
type ReportedWire struct {
	RawSoilMoisture     int    `json:"rawSoilMoisture"`
	SoilMoisturePercent int    `json:"soilMoisturePercent"`
	HumidityRange       string `json:"humidityRange"`
	ServoAngle          int    `json:"servoAngle"`
	Emotion             string `json:"emotion"`
}

// GetRequest is the JSON published to the get topic.
type GetRequest struct {
	ClientToken string `json:"clientToken,omitempty"`
}

// ReportBuilder assembles report documents from engine state.
type ReportBuilder struct {
	Poses Poses

	// NewClientToken generates the correlation token for each document.
	// Defaults to a random UUID.
	NewClientToken func() string
}

// NewReportBuilder returns a builder issuing UUID client tokens.
func NewReportBuilder(poses Poses) ReportBuilder {
	return ReportBuilder{
		Poses:          poses,
		NewClientToken: func() string { return uuid.NewString() },
	}
}

func (b ReportBuilder) token() string {
	if b.NewClientToken == nil {
		return uuid.NewString()
	}
	return b.NewClientToken()
}

// Build returns the report for state and the live sensor sample.
func (b ReportBuilder) Build(state EngineState, sensor SensorSnapshot) ReportDocument {
	snap := state.Reported(sensor, b.Poses)
	return ReportDocument{
		Version:     state.KnownVersion,
		ClientToken: b.token(),
		State: ReportState{
			Reported: ReportedWire{
				RawSoilMoisture:     snap.Raw,
				SoilMoisturePercent: snap.Percent,
				HumidityRange:       snap.Range.String(),
				ServoAngle:          snap.Angle,
				Emotion:             snap.Emotion.String(),
			},
		},
	}
}

// GetRequest returns a GET payload with a fresh client token.
func (b ReportBuilder) GetRequest() GetRequest {
	return GetRequest{ClientToken: b.token()}
}

// Marshal encodes the document.
func (d ReportDocument) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
