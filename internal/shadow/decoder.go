package shadow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound topic suffixes below $aws/things/{thing}/shadow/.
const (
	suffixUpdateDelta    = "update/delta"
	suffixUpdateAccepted = "update/accepted"
	suffixUpdateRejected = "update/rejected"
	suffixGetAccepted    = "get/accepted"
	suffixGetRejected    = "get/rejected"
)

// Decoder turns raw messages on a thing's shadow topics into events.
// It is stateless and safe for concurrent use.
type Decoder struct {
	root string
}

// NewDecoder returns a decoder for topics below root,
// e.g. "$aws/things/planter-01/shadow/".
func NewDecoder(root string) *Decoder {
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &Decoder{root: root}
}

// wire shapes; pointers record presence.
type (
	wireFields struct {
		ServoAngle          *int    `json:"servoAngle"`
		Emotion             *string `json:"emotion"`
		HumidityRange       *string `json:"humidityRange"`
		RawSoilMoisture     *int    `json:"rawSoilMoisture"`
		SoilMoisturePercent *int    `json:"soilMoisturePercent"`
	}

	wireState struct {
		Reported *wireFields     `json:"reported"`
		Desired  json.RawMessage `json:"desired"`
	}

	wireEnvelope struct {
		Version     *uint64         `json:"version"`
		State       json.RawMessage `json:"state"`
		ClientToken string          `json:"clientToken"`
		Code        *int            `json:"code"`
		Message     string          `json:"message"`
	}
)

// Decode parses payload according to the topic it arrived on.
//
// Returns ErrUnknownTopic for topics outside the inbound set and
// ErrMalformedEvent when the payload is not valid for its kind. A delta
// without a version still decodes; the reducer rejects it.
func (d *Decoder) Decode(topic string, payload []byte) (Event, error) {
	suffix, ok := strings.CutPrefix(topic, d.root)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, suffix, err)
	}

	version, hasVersion := Version(0), env.Version != nil
	if hasVersion {
		version = Version(*env.Version)
	}

	switch suffix {
	case suffixUpdateDelta:
		ev := Delta{Version: version, HasVersion: hasVersion, ClientToken: env.ClientToken}
		if present(env.State) {
			var f wireFields
			if err := json.Unmarshal(env.State, &f); err != nil {
				return nil, fmt.Errorf("%w: delta state: %w", ErrMalformedEvent, err)
			}
			ev.Fragment = DesiredFragment{Angle: f.ServoAngle, Emotion: f.Emotion}
		}
		return ev, nil

	case suffixGetAccepted:
		doc, err := decodeDocument(env)
		if err != nil {
			return nil, err
		}
		doc.Version, doc.HasVersion = version, hasVersion
		return GetAccepted{Document: doc, ClientToken: env.ClientToken}, nil

	case suffixUpdateAccepted:
		return UpdateAccepted{Version: version, HasVersion: hasVersion, ClientToken: env.ClientToken}, nil

	case suffixGetRejected:
		return GetRejected{Rejection: rejection(env)}, nil

	case suffixUpdateRejected:
		return UpdateRejected{Rejection: rejection(env)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

func decodeDocument(env wireEnvelope) (Document, error) {
	var doc Document
	if !present(env.State) {
		return doc, nil
	}
	doc.HasState = true

	var st wireState
	if err := json.Unmarshal(env.State, &st); err != nil {
		return doc, fmt.Errorf("%w: get state: %w", ErrMalformedEvent, err)
	}

	if st.Reported != nil {
		doc.Reported = &ReportedFields{
			Angle:         st.Reported.ServoAngle,
			Emotion:       st.Reported.Emotion,
			HumidityRange: st.Reported.HumidityRange,
			Raw:           st.Reported.RawSoilMoisture,
			Percent:       st.Reported.SoilMoisturePercent,
		}
	}

	if present(st.Desired) {
		// Any key makes desired non-empty, even ones the device ignores.
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(st.Desired, &keys); err != nil {
			return doc, fmt.Errorf("%w: desired: %w", ErrMalformedEvent, err)
		}
		if len(keys) > 0 {
			var f wireFields
			if err := json.Unmarshal(st.Desired, &f); err != nil {
				return doc, fmt.Errorf("%w: desired: %w", ErrMalformedEvent, err)
			}
			doc.Desired = &DesiredFragment{Angle: f.ServoAngle, Emotion: f.Emotion}
		}
	}

	return doc, nil
}

func rejection(env wireEnvelope) Rejection {
	r := Rejection{Message: env.Message, ClientToken: env.ClientToken}
	if env.Code != nil {
		r.Code = *env.Code
	}
	return r
}

// present reports whether a raw field was supplied and is not JSON null.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
