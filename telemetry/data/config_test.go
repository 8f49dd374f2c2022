package data

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/remote"
)

// TestConfigValidity tests the Valid() function for the Config
func TestConfigValidity(t *testing.T) {
	tests := []struct {
		name        string
		toTest      Config
		errContains string
	}{
		{"valid", Config{
			Args:      &Args{},
			LogLevel:  "info",
			Telemetry: Telemetry{Level: "all"},
		}, ""},
		{"valid appenders", Config{
			Args:      &Args{},
			LogLevel:  "debug",
			Telemetry: Telemetry{Level: "error"},
			Appenders: map[string]map[string]interface{}{"log": {"file": "x.log"}, "insights": nil},
			Metrics:   Metrics{Mode: "on"},
		}, ""},
		{"empty config", Config{Args: nil}, "Args.Valid(): args were nil"},
		{"bad log level", Config{Args: &Args{}, LogLevel: "loud", Telemetry: Telemetry{Level: "all"}}, "not a valid logrus Level"},
		{"bad telemetry level", Config{Args: &Args{}, LogLevel: "info", Telemetry: Telemetry{Level: "some"}}, "'some' is not a valid telemetry level"},
		{"unknown appender", Config{
			Args:      &Args{},
			LogLevel:  "info",
			Telemetry: Telemetry{Level: "all"},
			Appenders: map[string]map[string]interface{}{"kafka": nil},
		}, "unknown appender 'kafka'"},
		{"bad metrics mode", Config{
			Args:      &Args{},
			LogLevel:  "info",
			Telemetry: Telemetry{Level: "all"},
			Metrics:   Metrics{Mode: "maybe"},
		}, "metrics mode must be ON or OFF"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.toTest.Valid()

			if test.errContains == "" {
				assert.Nil(t, err)
				return
			}

			assert.ErrorContains(t, err, test.errContains)
		})
	}
}

// TestMakeServiceConfigErrors tests that unknown fields cause an error
func TestMakeServiceConfigErrors(t *testing.T) {
	tests := []struct {
		name             string
		invalidConfigStr string
		errorContains    string
	}{
		{"appender not appenders", `---
log-level: info
appender:
  log:
    file: telemetry.log`, "field appender not found"},
		{"unknown product field", `---
product:
  name: workbench
  ai-config:
    primary-keys: abc`, "field primary-keys not found"},
		{"unknown appender", `---
appenders:
  kafka:
    brokers: localhost:9092`, "unknown appender 'kafka'"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dataDir := t.TempDir()

			err := os.WriteFile(filepath.Join(dataDir, DefaultConfigName), []byte(test.invalidConfigStr), 0777)
			assert.Nil(t, err)

			_, err = MakeServiceConfig(&Args{DataDir: dataDir})
			assert.ErrorContains(t, err, test.errorContains)
		})
	}
}

// TestMakeServiceConfig tests making the service configuration
func TestMakeServiceConfig(t *testing.T) {
	_, err := MakeServiceConfig(nil)
	assert.Equal(t, fmt.Errorf("MakeServiceConfig(): empty args"), err)

	dataDir := t.TempDir()

	validConfigFile := `---
log-level: debug
product:
  name: workbench
  version: 1.80.0
  commit: 0a1b2c
  remote-authority: ssh-remote+myhost
  ai-config:
    primary-key: primary
    secondary-key: secondary
    prefer-secondary: true
telemetry:
  internal-testing: true
  send-error-telemetry: true
remote:
  url: nats://127.0.0.1:4222
appenders:
  log:
    file: events.log
  opensearch:
    uri: http://localhost:9200
    index: events
metrics:
  mode: ON
  addr: ":9999"
`

	err = os.WriteFile(filepath.Join(dataDir, DefaultConfigName), []byte(validConfigFile), 0777)
	require.NoError(t, err)

	cfg, err := MakeServiceConfig(&Args{DataDir: dataDir})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "workbench", cfg.Product.Name)
	assert.Equal(t, "1.80.0", cfg.Product.Version)
	assert.Equal(t, "ssh-remote+myhost", cfg.Product.RemoteAuthority)
	assert.Equal(t, telemetry.AIConfig{PrimaryKey: "primary", SecondaryKey: "secondary", PreferSecondary: true}, cfg.Product.AIConfig)
	assert.True(t, cfg.Telemetry.InternalTesting)
	assert.Equal(t, telemetry.LevelAll, cfg.TelemetryLevel())
	assert.False(t, cfg.TelemetryDisabled())
	assert.Equal(t, remote.DefaultSubject, cfg.Remote.Subject)
	assert.Equal(t, DefaultMetricsPrefix, cfg.Metrics.Prefix)
	assert.True(t, cfg.MetricsEnabled())

	configs, err := cfg.AppenderConfigs()
	require.NoError(t, err)
	assert.Equal(t, "file: events.log\n", configs[appenders.LocalLog])
	assert.Contains(t, configs[appenders.SecondaryCloud], "index: events")
	assert.NotContains(t, configs, appenders.CustomInsights)

	// invalidDataDir has no auto load file
	invalidDataDir := t.TempDir()
	_, err = MakeServiceConfig(&Args{DataDir: invalidDataDir})
	assert.Equal(t, err,
		fmt.Errorf("MakeServiceConfig(): could not find %s in data directory (%s)", DefaultConfigName, invalidDataDir))
}

func TestTelemetryDisabledByArgs(t *testing.T) {
	cfg := Config{Args: &Args{DisableTelemetry: true}}
	assert.True(t, cfg.TelemetryDisabled())
	cfg = Config{Args: &Args{}, Telemetry: Telemetry{Disabled: true}}
	assert.True(t, cfg.TelemetryDisabled())
}

func TestAmbiguousConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "wbtelemetry.yml"), []byte("---\n"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "wbtelemetry.yaml"), []byte("---\n"), 0777))
	_, err := MakeServiceConfig(&Args{DataDir: dataDir})
	assert.ErrorContains(t, err, "could not find")
}
