package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/metrics"
	"github.com/gitpod-io/workbench-telemetry/telemetry/remote"
	"github.com/gitpod-io/workbench-telemetry/telemetry/service"
)

// DefaultConfigBaseName is the default configuration filename without the extension.
var DefaultConfigBaseName = "wbtelemetry"

// DefaultConfigName is the default configuration filename.
var DefaultConfigName = fmt.Sprintf("%s.yml", DefaultConfigBaseName)

// DefaultLogLevel is the default log level if none is provided.
var DefaultLogLevel = log.InfoLevel

// DefaultTelemetryLevel is used when the telemetry section has no level.
var DefaultTelemetryLevel = telemetry.LevelAll

// DefaultMetricsPrefix is the default prometheus subsystem if no Prefix option is provided.
var DefaultMetricsPrefix = metrics.DefaultSubsystem

// Args configuration for the telemetry service.
type Args struct {
	DataDir          string `yaml:"data-dir"`
	DisableTelemetry bool   `yaml:"disable-telemetry"`
}

// Product describes the running build and its ingestion keys.
type Product struct {
	service.Product `yaml:",inline"`

	AIConfig telemetry.AIConfig `yaml:"ai-config"`
}

// Telemetry holds the user's telemetry settings.
type Telemetry struct {
	Level              string `yaml:"level"`
	InternalTesting    bool   `yaml:"internal-testing"`
	SendErrorTelemetry bool   `yaml:"send-error-telemetry"`
	Disabled           bool   `yaml:"disabled"`
}

// Metrics configs for turning on Prometheus endpoint /metrics
type Metrics struct {
	Mode   string `yaml:"mode"`
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// API configures the status endpoint. It is disabled when Address is empty.
type API struct {
	Address string `yaml:"address"`
}

// Config stores configuration specific to the telemetry service
type Config struct {
	// Args are the program inputs. Should not be serialized for config.
	Args *Args `yaml:"-"`

	HideBanner bool   `yaml:"hide-banner"`
	LogFile    string `yaml:"log-file"`
	LogLevel   string `yaml:"log-level"`

	Product   Product       `yaml:"product"`
	Telemetry Telemetry     `yaml:"telemetry"`
	Remote    remote.Config `yaml:"remote"`

	// Appenders maps an appender name to its plugin configuration.
	Appenders map[string]map[string]interface{} `yaml:"appenders"`

	Metrics Metrics `yaml:"metrics"`
	API     API     `yaml:"api"`
}

// Valid validates the config
func (cfg *Config) Valid() error {
	if cfg.Args == nil {
		return fmt.Errorf("Args.Valid(): args were nil")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("Args.Valid(): %w", err)
	}
	if _, err := telemetry.ParseLevel(cfg.Telemetry.Level); err != nil {
		return fmt.Errorf("Args.Valid(): %w", err)
	}
	for name := range cfg.Appenders {
		if !isKnownKind(name) {
			return fmt.Errorf("Args.Valid(): unknown appender '%s'", name)
		}
	}
	switch strings.ToUpper(cfg.Metrics.Mode) {
	case "", "ON", "OFF":
	default:
		return fmt.Errorf("Args.Valid(): metrics mode must be ON or OFF, got '%s'", cfg.Metrics.Mode)
	}
	return nil
}

func isKnownKind(name string) bool {
	for _, kind := range appenders.AllKinds {
		if string(kind) == name {
			return true
		}
	}
	return false
}

// TelemetryLevel returns the parsed telemetry level.
func (cfg *Config) TelemetryLevel() telemetry.Level {
	level, err := telemetry.ParseLevel(cfg.Telemetry.Level)
	if err != nil {
		return telemetry.LevelOff
	}
	return level
}

// TelemetryDisabled is true when either the config or the command line turned telemetry off.
func (cfg *Config) TelemetryDisabled() bool {
	return cfg.Telemetry.Disabled || (cfg.Args != nil && cfg.Args.DisableTelemetry)
}

// MetricsEnabled reports whether /metrics should be served.
func (cfg *Config) MetricsEnabled() bool {
	return strings.EqualFold(cfg.Metrics.Mode, "ON")
}

// AppenderConfigs serializes each appender section so it can be handed to the plugin.
func (cfg *Config) AppenderConfigs() (map[appenders.Kind]string, error) {
	result := make(map[appenders.Kind]string, len(cfg.Appenders))
	for name, section := range cfg.Appenders {
		if len(section) == 0 {
			continue
		}
		configs, err := yaml.Marshal(section)
		if err != nil {
			return nil, fmt.Errorf("AppenderConfigs(): could not serialize config for %s: %w", name, err)
		}
		result[appenders.Kind(name)] = string(configs)
	}
	return result, nil
}

// MakeServiceConfig creates the service configuration from the data directory.
func MakeServiceConfig(args *Args) (*Config, error) {
	if args == nil {
		return nil, fmt.Errorf("MakeServiceConfig(): empty args")
	}

	if !isDir(args.DataDir) {
		return nil, fmt.Errorf("MakeServiceConfig(): invalid data dir '%s'", args.DataDir)
	}

	// Search for configuration in data directory
	autoloadParamConfigPath, err := getConfigFromDataDir(args.DataDir, DefaultConfigBaseName, []string{"yml", "yaml"})
	if err != nil || autoloadParamConfigPath == "" {
		return nil, fmt.Errorf("MakeServiceConfig(): could not find %s in data directory (%s)", DefaultConfigName, args.DataDir)
	}

	file, err := os.Open(autoloadParamConfigPath)
	if err != nil {
		return nil, fmt.Errorf("MakeServiceConfig(): reading config error: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	// Make sure we are strict about only unmarshalling known fields
	decoder.KnownFields(true)

	var cfg Config
	err = decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("MakeServiceConfig(): config file (%s) was mal-formed yaml: %w", autoloadParamConfigPath, err)
	}

	// For convenience, include the command line arguments.
	cfg.Args = args

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel.String()
	}
	if cfg.Telemetry.Level == "" {
		cfg.Telemetry.Level = DefaultTelemetryLevel.String()
	}
	if cfg.Metrics.Prefix == "" {
		cfg.Metrics.Prefix = DefaultMetricsPrefix
	}
	if cfg.Remote.URL != "" && cfg.Remote.Subject == "" {
		cfg.Remote.Subject = remote.DefaultSubject
	}

	if err := cfg.Valid(); err != nil {
		return nil, fmt.Errorf("MakeServiceConfig(): config file (%s) had mal-formed schema: %w", autoloadParamConfigPath, err)
	}

	return &cfg, nil
}

// isDir returns true if the specified directory is valid.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// fileExists checks to see if the specified file (or directory) exists.
func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// getConfigFromDataDir looks for configFilename with one of configFileTypes in
// dataDirectory. An empty string is returned when there is no match and an
// error when more than one filetype matched.
func getConfigFromDataDir(dataDirectory string, configFilename string, configFileTypes []string) (string, error) {
	count := 0
	fullPath := ""

	for _, configFileType := range configFileTypes {
		autoloadParamConfigPath := filepath.Join(dataDirectory, configFilename+"."+configFileType)
		if fileExists(autoloadParamConfigPath) {
			count++
			fullPath = autoloadParamConfigPath
		}
	}

	if count > 1 {
		return "", fmt.Errorf("config filename (%s) in data directory (%s) matched more than one filetype: %v",
			configFilename, dataDirectory, configFileTypes)
	}

	return fullPath, nil
}
