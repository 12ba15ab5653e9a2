// Package influxdb records soil moisture, servo pose and shadow sync
// telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Metrics are optional:
// Connect returns ErrDisabled when the influxdb section is disabled and the
// agent runs without them.
//
// # Measurements
//
//	soil_moisture  tags: thing, range    fields: raw, percent
//	servo          tags: thing, emotion  fields: angle
//	shadow_sync    tags: thing, trigger  fields: version
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ThingName)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without metrics
//	}
//	defer client.Close()
//
//	client.WriteSoilMoisture(2100, 57, "OPTIMO", time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// errors are delivered to the SetOnError callback.
package influxdb
