package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// RemoteConnection is an established connection to a remote server that
// owns network egress for telemetry.
type RemoteConnection interface {
	// LogTelemetry hands an event to the remote side. It must not wait for
	// the remote side to acknowledge the event.
	LogTelemetry(event Event) error

	// FlushTelemetry asks the remote side to deliver buffered events.
	FlushTelemetry(ctx context.Context) error
}

// MetricsProvider is an optional interface. Appenders should implement it if
// they have custom metrics which should be registered.
type MetricsProvider interface {
	// ProvideMetrics is called by the telemetry service after the appender
	// has been initialized. The collectors are exposed on the metrics
	// endpoint when it is enabled.
	ProvideMetrics(subsystem string) []prometheus.Collector
}
