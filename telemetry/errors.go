package telemetry

import (
	"errors"
	"fmt"
)

// ErrConfigurationIncomplete is reported when the product keys needed to
// send telemetry are missing. Telemetry is disabled rather than failing.
var ErrConfigurationIncomplete = errors.New("telemetry configuration incomplete")

// ErrSelectorMisuse is reported when an appender was selected for a
// configuration that cannot support it, e.g. remote forwarding without a
// remote connection.
var ErrSelectorMisuse = errors.New("telemetry selector misuse")

// AppenderError wraps a transport failure inside a single appender.
type AppenderError struct {
	Appender string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *AppenderError) Error() string {
	return fmt.Sprintf("appender %s: %s: %v", e.Appender, e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *AppenderError) Unwrap() error {
	return e.Err
}
