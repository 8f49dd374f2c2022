package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Level controls which classes of events are sent.
type Level int

const (
	// LevelOff disables telemetry entirely.
	LevelOff Level = iota
	// LevelCrash only allows crash reports, which this service does not emit.
	LevelCrash
	// LevelError allows error events.
	LevelError
	// LevelAll allows error and usage events.
	LevelAll
)

var levelNames = []string{"off", "crash", "error", "all"}

func (l Level) String() string {
	if l < LevelOff || l > LevelAll {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a configuration string into a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("'%s' is not a valid telemetry level, valid levels: %s", s, strings.Join(levelNames, ", "))
}

// AIConfig holds the product ingestion keys.
type AIConfig struct {
	PrimaryKey      string `yaml:"primary-key"`
	SecondaryKey    string `yaml:"secondary-key"`
	PreferSecondary bool   `yaml:"prefer-secondary"`
}

// Config is the read-only snapshot used to select telemetry backends.
// Use MakeConfig to build one; the common properties are copied so later
// changes to the caller's map are not observed.
type Config struct {
	HasPrimaryKey           bool
	HasSecondaryKey         bool
	PreferSecondary         bool
	InternalTesting         bool
	RemoteConnectionPresent bool
	// Enabled is false when telemetry is disabled by policy.
	Enabled          bool
	CommonProperties map[string]string
}

// MakeConfig captures a Config from the product keys and runtime flags.
func MakeConfig(ai AIConfig, enabled, internalTesting, remotePresent bool, common map[string]string) Config {
	props := make(map[string]string, len(common))
	for k, v := range common {
		props[k] = v
	}
	return Config{
		HasPrimaryKey:           ai.PrimaryKey != "",
		HasSecondaryKey:         ai.SecondaryKey != "",
		PreferSecondary:         ai.PreferSecondary,
		InternalTesting:         internalTesting,
		RemoteConnectionPresent: remotePresent,
		Enabled:                 enabled,
		CommonProperties:        props,
	}
}

// Data is an event payload. Values are expected to be scalars.
type Data map[string]interface{}

// Event is a single telemetry event as seen by appenders.
type Event struct {
	Name      string    `json:"name"`
	Data      Data      `json:"data,omitempty"`
	Error     bool      `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Info identifies this installation and session.
type Info struct {
	InstanceID       string `json:"instanceId"`
	SessionID        string `json:"sessionId"`
	FirstSessionDate string `json:"firstSessionDate"`
	IsUsingDefaultID bool   `json:"isUsingDefaultId"`
}
