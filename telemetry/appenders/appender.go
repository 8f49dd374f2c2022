package appenders

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// Appender defines the interface for telemetry sinks.
type Appender interface {
	// Plugin - implement this interface.
	plugins.Plugin

	// Init will be called once, before any event is logged.
	// Typically used for things like initializing network clients.
	// The PluginConfig passed to Init will contain the appender section of the config file.
	// Should return an error if it fails--the appender is then left out of the service.
	Init(ctx context.Context, initProvider telemetry.InitProvider, cfg plugins.PluginConfig, logger *logrus.Logger) error

	// Log hands a single event to the appender. It must not block on network I/O;
	// appenders buffer and deliver in the background or during Flush.
	Log(event telemetry.Event) error

	// Flush delivers buffered events.
	Flush(ctx context.Context) error
}

// Kind identifies an appender variant.
type Kind string

const (
	// RemoteForwarding sends events over the existing remote connection.
	RemoteForwarding Kind = "remote"
	// PrimaryCloud sends events to the primary cloud ingestion endpoint.
	PrimaryCloud Kind = "appinsights"
	// SecondaryCloud sends events to the secondary cloud ingestion endpoint.
	SecondaryCloud Kind = "opensearch"
	// LocalLog writes events to a local structured log.
	LocalLog Kind = "log"
	// CustomInsights persists events for the product's own analytics.
	CustomInsights Kind = "insights"
)

// AllKinds lists every appender variant in selection order.
var AllKinds = []Kind{RemoteForwarding, PrimaryCloud, SecondaryCloud, LocalLog, CustomInsights}

func (k Kind) String() string {
	return string(k)
}
