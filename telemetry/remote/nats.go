// Package remote connects to the remote server that owns telemetry egress
// when the workbench runs against a remote workspace.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "workbench.telemetry"

// Config describes how to reach the remote server.
type Config struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Connection forwards telemetry over a NATS connection.
type Connection struct {
	nc      *nats.Conn
	subject string
	logger  *log.Logger
}

// Dial connects to the remote server described by cfg.
func Dial(cfg Config, logger *log.Logger) (*Connection, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("Dial(): remote url is required")
	}
	logContext := logger.WithFields(log.Fields{
		"context": "remote-telemetry",
		"url":     cfg.URL,
	})
	opts := []nats.Option{
		nats.Name("wbtelemetry"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logContext.WithError(err).Warn("remote connection lost")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logContext.Info("remote connection re-established")
		}),
	}

	logContext.Info("Connecting to remote server...")
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("Dial(): unable to connect to %s: %w", cfg.URL, err)
	}
	return NewConnection(nc, cfg.Subject, logger), nil
}

// NewConnection wraps an established NATS connection.
func NewConnection(nc *nats.Conn, subject string, logger *log.Logger) *Connection {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Connection{
		nc:      nc,
		subject: subject,
		logger:  logger,
	}
}

// LogSubject is the subject events are published on.
func (c *Connection) LogSubject() string {
	return c.subject + ".log"
}

// LogTelemetry publishes the event. Publishing is buffered by the client.
func (c *Connection) LogTelemetry(event telemetry.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("LogTelemetry(): unable to encode event %s: %w", event.Name, err)
	}
	if err := c.nc.Publish(c.LogSubject(), data); err != nil {
		return fmt.Errorf("LogTelemetry(): failed to publish event %s: %w", event.Name, err)
	}
	return nil
}

// FlushTelemetry waits until the server has processed buffered events.
func (c *Connection) FlushTelemetry(ctx context.Context) error {
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("FlushTelemetry(): %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (c *Connection) Close() error {
	return c.nc.Drain()
}
