package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultSubsystem is used when no metrics prefix is configured.
const DefaultSubsystem = "wbtelemetry"

// Prometheus metric names
const (
	EventsLoggedName     = "events_logged_total"
	AppenderFailuresName = "appender_failures_total"
	FlushTimeName        = "flush_time_sec"
	AppendersActiveName  = "appenders_active"
)

// Labels
const (
	AppenderLabel  = "appender"
	OperationLabel = "op"
	ClassLabel     = "class"
)

// Metric variables. They are usable before RegisterPrometheusMetrics is called.
var (
	EventsLogged     = newEventsLogged(DefaultSubsystem)
	AppenderFailures = newAppenderFailures(DefaultSubsystem)
	FlushTimeSeconds = newFlushTime(DefaultSubsystem)
	AppendersActive  = newAppendersActive(DefaultSubsystem)
)

var registerOnce sync.Once

// RegisterPrometheusMetrics creates the collectors under subsystem and
// registers them with the default registry. Only the first call has an effect.
func RegisterPrometheusMetrics(subsystem string) {
	registerOnce.Do(func() {
		EventsLogged = newEventsLogged(subsystem)
		AppenderFailures = newAppenderFailures(subsystem)
		FlushTimeSeconds = newFlushTime(subsystem)
		AppendersActive = newAppendersActive(subsystem)

		_ = prometheus.Register(EventsLogged)
		_ = prometheus.Register(AppenderFailures)
		_ = prometheus.Register(FlushTimeSeconds)
		_ = prometheus.Register(AppendersActive)
	})
}

func newEventsLogged(subsystem string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      EventsLoggedName,
			Help:      "Events handed to an appender.",
		},
		[]string{AppenderLabel, ClassLabel})
}

func newAppenderFailures(subsystem string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      AppenderFailuresName,
			Help:      "Appender operations that failed.",
		},
		[]string{AppenderLabel, OperationLabel})
}

func newFlushTime(subsystem string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      FlushTimeName,
			Help:      "Appender flush time in seconds.",
		},
		[]string{AppenderLabel})
}

func newAppendersActive(subsystem string) prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      AppendersActiveName,
			Help:      "Number of appenders owned by the telemetry service.",
		})
}
