package influxdb

import "errors"

// Errors returned by the metrics client. Write failures are asynchronous and
// go to the handler passed to Connect instead.
var (
	// ErrNotConnected is returned by HealthCheck on a closed client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed is returned when the server cannot be reached.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	errServerUnhealthy = errors.New("server not healthy")
)
