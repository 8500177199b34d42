// Package influxdb records export and import run metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Every export or import run becomes one point in the entity_overrides_runs
// measurement, tagged with the operation and whether it succeeded.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
//	    log.Error("metrics write failed", "error", err)
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRunMetric("export_overrides", true, map[string]any{"entities": 42})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported to the
// handler passed to Connect. Connection and health check errors are returned
// directly. Connect returns ErrDisabled when influxdb.enabled is false.
package influxdb
