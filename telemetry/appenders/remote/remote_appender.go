package remote

import (
	"context"
	_ "embed" // used to embed config
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// PluginName to use when configuring.
const PluginName = string(appenders.RemoteForwarding)

// remoteAppender delegates to the remote connection, which owns the
// actual network egress. The connection belongs to the host and is not
// closed by the appender.
type remoteAppender struct {
	conn telemetry.RemoteConnection
}

//go:embed sample.yaml
var sampleConfig string

var metadata = plugins.Metadata{
	Name:         PluginName,
	Description:  "Forward telemetry events over the remote server connection.",
	Deprecated:   false,
	SampleConfig: sampleConfig,
}

func (a *remoteAppender) Metadata() plugins.Metadata {
	return metadata
}

func (a *remoteAppender) Init(_ context.Context, initProvider telemetry.InitProvider, _ plugins.PluginConfig, _ *logrus.Logger) error {
	a.conn = initProvider.RemoteConnection()
	if a.conn == nil {
		return fmt.Errorf("%w: remote forwarding requires a remote connection", telemetry.ErrSelectorMisuse)
	}
	return nil
}

func (a *remoteAppender) Log(event telemetry.Event) error {
	return a.conn.LogTelemetry(event)
}

func (a *remoteAppender) Flush(ctx context.Context) error {
	return a.conn.FlushTelemetry(ctx)
}

func (a *remoteAppender) Close() error {
	return nil
}

func init() {
	appenders.Register(appenders.RemoteForwarding, appenders.AppenderConstructorFunc(func() appenders.Appender {
		return &remoteAppender{}
	}))
}
