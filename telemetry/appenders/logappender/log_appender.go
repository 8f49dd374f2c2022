package logappender

import (
	"context"
	_ "embed" // used to embed config
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/loggers"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// PluginName to use when configuring.
const PluginName = string(appenders.LocalLog)

// DefaultFileName is used inside the appender data directory when no file is configured.
const DefaultFileName = "telemetry.log"

// logAppender writes every event as a structured log entry. It is a local
// diagnostic trail and does not depend on network delivery.
type logAppender struct {
	cfg    AppenderConfig
	out    *logrus.Logger
	file   *os.File
	closed bool
	mu     sync.Mutex
}

//go:embed sample.yaml
var sampleConfig string

var metadata = plugins.Metadata{
	Name:         PluginName,
	Description:  "Write telemetry events to a local structured log.",
	Deprecated:   false,
	SampleConfig: sampleConfig,
}

func (a *logAppender) Metadata() plugins.Metadata {
	return metadata
}

func (a *logAppender) Init(_ context.Context, _ telemetry.InitProvider, cfg plugins.PluginConfig, logger *logrus.Logger) error {
	if err := cfg.UnmarshalConfig(&a.cfg); err != nil {
		return fmt.Errorf("init failure in unmarshalConfig: %v", err)
	}

	file := a.cfg.File
	if file == "" && cfg.DataDir != "" {
		file = path.Join(cfg.DataDir, DefaultFileName)
	}
	if file == "" {
		if logger == nil {
			return fmt.Errorf("log appender: no file configured and no logger provided")
		}
		a.out = logger
		return nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("log appender: unable to open %s: %w", file, err)
	}
	a.file = f
	a.out = loggers.MakeThreadSafeLoggerWithWriter(logrus.InfoLevel, f)
	return nil
}

func (a *logAppender) Log(event telemetry.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.out == nil {
		return fmt.Errorf("log appender is not open")
	}

	entry := a.out.WithFields(logrus.Fields{
		"event": event.Name,
		"data":  event.Data,
	}).WithTime(event.Timestamp)
	if event.Error {
		entry.Error("telemetry/error")
	} else {
		entry.Info("telemetry/event")
	}
	return nil
}

func (a *logAppender) Flush(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil || a.closed {
		return nil
	}
	return a.file.Sync()
}

func (a *logAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func init() {
	appenders.Register(appenders.LocalLog, appenders.AppenderConstructorFunc(func() appenders.Appender {
		return &logAppender{}
	}))
}
