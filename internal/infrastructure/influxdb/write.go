package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// runMeasurement is the measurement holding one point per export/import run.
const runMeasurement = "entity_overrides_runs"

// WriteRunMetric records the outcome of one export or import run.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - operation: "export_overrides" or "import_overrides" (tag)
//   - success: whether the run completed (tag)
//   - fields: run counters such as entities, updated, skipped, duration_ms
//
// Example:
//
//	client.WriteRunMetric("export_overrides", true,
//	    map[string]any{"entities": 42, "pruned": 1, "duration_ms": 12})
func (c *Client) WriteRunMetric(operation string, success bool, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newRunPoint(operation, success, fields, time.Now()))
}

// newRunPoint builds the point written by WriteRunMetric.
func newRunPoint(operation string, success bool, fields map[string]any, ts time.Time) *write.Point {
	if len(fields) == 0 {
		// A point needs at least one field.
		fields = map[string]any{"runs": 1}
	}
	return write.NewPoint(
		runMeasurement,
		map[string]string{
			"operation": operation,
			"success":   strconv.FormatBool(success),
		},
		fields,
		ts,
	)
}
