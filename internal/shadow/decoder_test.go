package shadow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "$aws/things/planter-01/shadow/"

func TestDecoder_Delta(t *testing.T) {
	d := NewDecoder(testRoot)

	ev, err := d.Decode(testRoot+"update/delta",
		[]byte(`{"version":5,"timestamp":1700000000,"state":{"servoAngle":170,"emotion":"FELIZ"},"clientToken":"abc"}`))
	require.NoError(t, err)

	delta, ok := ev.(Delta)
	require.True(t, ok, "got %T", ev)
	assert.True(t, delta.HasVersion)
	assert.Equal(t, Version(5), delta.Version)
	require.NotNil(t, delta.Fragment.Angle)
	assert.Equal(t, 170, *delta.Fragment.Angle)
	require.NotNil(t, delta.Fragment.Emotion)
	assert.Equal(t, "FELIZ", *delta.Fragment.Emotion)
	assert.Equal(t, "abc", delta.ClientToken)
}

func TestDecoder_DeltaWithoutVersionStillDecodes(t *testing.T) {
	d := NewDecoder(testRoot)

	ev, err := d.Decode(testRoot+"update/delta", []byte(`{"state":{"servoAngle":10}}`))
	require.NoError(t, err)
	assert.False(t, ev.(Delta).HasVersion)
}

func TestDecoder_GetAccepted(t *testing.T) {
	d := NewDecoder(testRoot)

	tests := []struct {
		name        string
		payload     string
		hasState    bool
		hasReported bool
		hasDesired  bool
	}{
		{"no state", `{"version":1}`, false, false, false},
		{"null state", `{"version":1,"state":null}`, false, false, false},
		{"empty state", `{"version":1,"state":{}}`, true, false, false},
		{"reported only", `{"version":2,"state":{"reported":{"servoAngle":90}}}`, true, true, false},
		{"desired null", `{"version":2,"state":{"reported":{},"desired":null}}`, true, true, false},
		{"desired empty", `{"version":2,"state":{"reported":{},"desired":{}}}`, true, true, false},
		{"desired unrelated key", `{"version":2,"state":{"desired":{"color":"red"}}}`, true, false, true},
		{"desired angle", `{"version":2,"state":{"desired":{"servoAngle":0}}}`, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode(testRoot+"get/accepted", []byte(tt.payload))
			require.NoError(t, err)

			doc := ev.(GetAccepted).Document
			assert.True(t, doc.HasVersion)
			assert.Equal(t, tt.hasState, doc.HasState)
			assert.Equal(t, tt.hasReported, doc.Reported != nil)
			assert.Equal(t, tt.hasDesired, doc.Desired != nil)
		})
	}
}

func TestDecoder_GetAcceptedReportedFields(t *testing.T) {
	d := NewDecoder(testRoot)

	ev, err := d.Decode(testRoot+"get/accepted", []byte(`{
		"state": {"reported": {
			"servoAngle": 0, "emotion": "TRISTE", "humidityRange": "SECO",
			"rawSoilMoisture": 2900, "soilMoisturePercent": 15
		}},
		"version": 12
	}`))
	require.NoError(t, err)

	rep := ev.(GetAccepted).Document.Reported
	require.NotNil(t, rep)
	assert.Equal(t, 0, *rep.Angle)
	assert.Equal(t, "TRISTE", *rep.Emotion)
	assert.Equal(t, "SECO", *rep.HumidityRange)
	assert.Equal(t, 2900, *rep.Raw)
	assert.Equal(t, 15, *rep.Percent)
}

func TestDecoder_Rejections(t *testing.T) {
	d := NewDecoder(testRoot)

	ev, err := d.Decode(testRoot+"get/rejected", []byte(`{"code":404,"message":"No shadow exists with name: 'planter-01'"}`))
	require.NoError(t, err)
	assert.Equal(t, 404, ev.(GetRejected).Code)

	ev, err = d.Decode(testRoot+"update/rejected", []byte(`{"code":409,"message":"Version conflict","clientToken":"t-1"}`))
	require.NoError(t, err)
	rej := ev.(UpdateRejected)
	assert.Equal(t, 409, rej.Code)
	assert.Equal(t, "t-1", EventClientToken(rej))
}

func TestDecoder_UpdateAccepted(t *testing.T) {
	d := NewDecoder(testRoot)

	ev, err := d.Decode(testRoot+"update/accepted", []byte(`{"state":{"reported":{}},"version":8}`))
	require.NoError(t, err)

	v, ok := EventVersion(ev)
	assert.True(t, ok)
	assert.Equal(t, Version(8), v)
}

func TestDecoder_Errors(t *testing.T) {
	d := NewDecoder(testRoot)

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"other thing", "$aws/things/planter-02/shadow/update/delta", `{}`, ErrUnknownTopic},
		{"publish topic", testRoot + "update", `{}`, ErrUnknownTopic},
		{"invalid json", testRoot + "update/delta", `{"version":`, ErrMalformedEvent},
		{"empty payload", testRoot + "get/accepted", ``, ErrMalformedEvent},
		{"negative version", testRoot + "update/delta", `{"version":-1}`, ErrMalformedEvent},
		{"angle wrong type", testRoot + "update/delta", `{"version":1,"state":{"servoAngle":"up"}}`, ErrMalformedEvent},
		{"desired not object", testRoot + "get/accepted", `{"state":{"desired":[1]}}`, ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.topic, []byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewDecoder_AddsTrailingSlash(t *testing.T) {
	d := NewDecoder("$aws/things/planter-01/shadow")

	_, err := d.Decode(testRoot+"update/accepted", []byte(`{"version":1}`))
	assert.NoError(t, err)
}
