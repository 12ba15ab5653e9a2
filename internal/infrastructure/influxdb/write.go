package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSoilMoisture = "soil_moisture"
	MeasurementServo        = "servo"
	MeasurementShadowSync   = "shadow_sync"
)

// WriteSoilMoisture records one moisture sample.
//
// Example:
//
//	client.WriteSoilMoisture(2100, 57, "OPTIMO", time.Now())
func (c *Client) WriteSoilMoisture(raw, percent int, humidityRange string, at time.Time) {
	c.write(MeasurementSoilMoisture,
		map[string]string{"range": humidityRange},
		map[string]any{"raw": raw, "percent": percent},
		at,
	)
}

// WriteServo records the commanded servo pose.
func (c *Client) WriteServo(angle int, emotion string, at time.Time) {
	c.write(MeasurementServo,
		map[string]string{"emotion": emotion},
		map[string]any{"angle": angle},
		at,
	)
}

// WriteShadowSync records a report accepted by the transport.
// trigger is delta, get or telemetry.
func (c *Client) WriteShadowSync(version uint64, trigger string, at time.Time) {
	c.write(MeasurementShadowSync,
		map[string]string{"trigger": trigger},
		map[string]any{"version": version},
		at,
	)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if c.thing != "" {
		tags["thing"] = c.thing
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
