package insights

import (
	"context"
	_ "embed" // used to embed config
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// PluginName to use when configuring.
const PluginName = string(appenders.CustomInsights)

const (
	// DefaultTable is used when no table is configured.
	DefaultTable = "workbench_events"
	// DefaultMaxBufferedEvents bounds the buffer when not configured.
	DefaultMaxBufferedEvents = 1000
)

// openStore is replaced in tests.
var openStore = openPostgresStore

// insightsAppender feeds the product's own analytics database. It sees the
// same events as the main appender.
type insightsAppender struct {
	cfg      AppenderConfig
	store    EventStore
	info     telemetry.Info
	logger   *logrus.Logger
	mu       sync.Mutex
	buffer   []Record
	buffered prometheus.Gauge
}

//go:embed sample.yaml
var sampleConfig string

var metadata = plugins.Metadata{
	Name:         PluginName,
	Description:  "Persist telemetry events into the PostgreSQL insights database.",
	Deprecated:   false,
	SampleConfig: sampleConfig,
}

func (a *insightsAppender) Metadata() plugins.Metadata {
	return metadata
}

func (a *insightsAppender) Init(ctx context.Context, initProvider telemetry.InitProvider, cfg plugins.PluginConfig, logger *logrus.Logger) error {
	a.cfg = AppenderConfig{
		Table:             DefaultTable,
		MaxBufferedEvents: DefaultMaxBufferedEvents,
	}
	if err := cfg.UnmarshalConfig(&a.cfg); err != nil {
		return fmt.Errorf("init failure in unmarshalConfig: %v", err)
	}
	if a.cfg.ConnectionString == "" {
		return fmt.Errorf("%w: insights connection-string is empty", telemetry.ErrConfigurationIncomplete)
	}
	if a.cfg.MaxBufferedEvents <= 0 {
		return fmt.Errorf("init failure: max-buffered-events must be positive, got %d", a.cfg.MaxBufferedEvents)
	}

	store, err := openStore(ctx, a.cfg.ConnectionString, a.cfg.Table)
	if err != nil {
		return err
	}
	a.store = store
	a.info = initProvider.TelemetryInfo()
	a.logger = logger
	if a.logger == nil {
		a.logger = logrus.StandardLogger()
	}
	a.buffer = make([]Record, 0, a.cfg.MaxBufferedEvents)
	return nil
}

func (a *insightsAppender) Log(event telemetry.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buffer) >= a.cfg.MaxBufferedEvents {
		return fmt.Errorf("buffer full (%d events), dropping %s", len(a.buffer), event.Name)
	}
	a.buffer = append(a.buffer, Record{
		Name:       event.Name,
		Data:       event.Data,
		Error:      event.Error,
		Timestamp:  event.Timestamp,
		InstanceID: a.info.InstanceID,
		SessionID:  a.info.SessionID,
	})
	if a.buffered != nil {
		a.buffered.Set(float64(len(a.buffer)))
	}
	return nil
}

// Flush writes the buffered events. Events of a failed flush are dropped.
func (a *insightsAppender) Flush(ctx context.Context) error {
	a.mu.Lock()
	records := a.buffer
	a.buffer = make([]Record, 0, a.cfg.MaxBufferedEvents)
	if a.buffered != nil {
		a.buffered.Set(0)
	}
	a.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	if err := a.store.Insert(ctx, records); err != nil {
		return fmt.Errorf("failed to persist %d events: %w", len(records), err)
	}
	a.logger.Debugf("persisted %d events into %s", len(records), a.cfg.Table)
	return nil
}

func (a *insightsAppender) Close() error {
	if a.store != nil {
		a.store.Close()
	}
	return nil
}

// ProvideMetrics exposes the number of buffered events.
func (a *insightsAppender) ProvideMetrics(subsystem string) []prometheus.Collector {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffered = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "insights_buffered_events",
		Help:      "Events waiting for the next insights flush.",
	})
	return []prometheus.Collector{a.buffered}
}

func init() {
	appenders.Register(appenders.CustomInsights, appenders.AppenderConstructorFunc(func() appenders.Appender {
		return &insightsAppender{}
	}))
}
