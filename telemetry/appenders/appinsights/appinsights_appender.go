package appinsights

import (
	"context"
	_ "embed" // used to embed config
	"fmt"
	"strconv"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// PluginName to use when configuring.
const PluginName = string(appenders.PrimaryCloud)

const (
	// DefaultEventPrefix is prepended to event names when not configured.
	DefaultEventPrefix = "monacoworkbench"
	// DefaultMaxBatchSize is used when not configured.
	DefaultMaxBatchSize = 1024
	// DefaultMaxBatchInterval is used when not configured.
	DefaultMaxBatchInterval = 10 * time.Second
)

// appInsightsAppender sends events with the Application Insights client,
// which batches and transmits in the background.
type appInsightsAppender struct {
	cfg      AppenderConfig
	client   appinsights.TelemetryClient
	listener appinsights.DiagnosticsMessageListener
}

//go:embed sample.yaml
var sampleConfig string

var metadata = plugins.Metadata{
	Name:         PluginName,
	Description:  "Send telemetry events to Application Insights using the primary ingestion key.",
	Deprecated:   false,
	SampleConfig: sampleConfig,
}

func (a *appInsightsAppender) Metadata() plugins.Metadata {
	return metadata
}

func (a *appInsightsAppender) Init(_ context.Context, initProvider telemetry.InitProvider, cfg plugins.PluginConfig, logger *logrus.Logger) error {
	a.cfg = AppenderConfig{
		EventPrefix:      DefaultEventPrefix,
		MaxBatchSize:     DefaultMaxBatchSize,
		MaxBatchInterval: DefaultMaxBatchInterval,
	}
	if err := cfg.UnmarshalConfig(&a.cfg); err != nil {
		return fmt.Errorf("init failure in unmarshalConfig: %v", err)
	}

	key := initProvider.AIConfig().PrimaryKey
	if key == "" {
		return fmt.Errorf("%w: primary key is missing", telemetry.ErrConfigurationIncomplete)
	}

	aiConfig := appinsights.NewTelemetryConfiguration(key)
	if a.cfg.EndpointURL != "" {
		aiConfig.EndpointUrl = a.cfg.EndpointURL
	}
	aiConfig.MaxBatchSize = a.cfg.MaxBatchSize
	aiConfig.MaxBatchInterval = a.cfg.MaxBatchInterval
	a.client = appinsights.NewTelemetryClientFromConfig(aiConfig)

	info := initProvider.TelemetryInfo()
	a.client.Context().Tags.Session().SetId(info.SessionID)
	a.client.Context().Tags.Device().SetId(info.InstanceID)

	if logger != nil {
		a.listener = appinsights.NewDiagnosticsMessageListener(func(msg string) error {
			logger.Debugf("appinsights: %s", msg)
			return nil
		})
	}
	return nil
}

// eventName prefixes name with the configured prefix.
func (a *appInsightsAppender) eventName(name string) string {
	if a.cfg.EventPrefix == "" {
		return name
	}
	return a.cfg.EventPrefix + "/" + name
}

// makeEventTelemetry splits the payload into string properties and numeric measurements.
func (a *appInsightsAppender) makeEventTelemetry(event telemetry.Event) *appinsights.EventTelemetry {
	item := appinsights.NewEventTelemetry(a.eventName(event.Name))
	if !event.Timestamp.IsZero() {
		item.Timestamp = event.Timestamp
	}
	for k, v := range event.Data {
		switch value := v.(type) {
		case nil:
		case string:
			item.Properties[k] = value
		case bool:
			item.Properties[k] = strconv.FormatBool(value)
		case int:
			item.Measurements[k] = float64(value)
		case int32:
			item.Measurements[k] = float64(value)
		case int64:
			item.Measurements[k] = float64(value)
		case uint64:
			item.Measurements[k] = float64(value)
		case float32:
			item.Measurements[k] = float64(value)
		case float64:
			item.Measurements[k] = value
		default:
			item.Properties[k] = fmt.Sprint(value)
		}
	}
	return item
}

func (a *appInsightsAppender) Log(event telemetry.Event) error {
	if a.client == nil {
		return fmt.Errorf("appinsights appender is not initialized")
	}
	a.client.Track(a.makeEventTelemetry(event))
	return nil
}

// Flush asks the channel to transmit its batch. Transmission completes in the background.
func (a *appInsightsAppender) Flush(_ context.Context) error {
	if a.client == nil {
		return nil
	}
	a.client.Channel().Flush()
	return nil
}

// Close starts the final transmission without waiting for it.
func (a *appInsightsAppender) Close() error {
	if a.listener != nil {
		a.listener.Remove()
	}
	if a.client != nil {
		a.client.Channel().Close()
	}
	return nil
}

func init() {
	appenders.Register(appenders.PrimaryCloud, appenders.AppenderConstructorFunc(func() appenders.Appender {
		return &appInsightsAppender{}
	}))
}
