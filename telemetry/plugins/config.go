package plugins

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PluginConfig is the configuration handed to a plugin during Init.
type PluginConfig struct {
	// Config is the plugin section of the config file, serialized as YAML.
	Config string
	// DataDir is a directory reserved for the plugin. Empty if the service
	// is not running with a data directory.
	DataDir string
}

// MakePluginConfig creates a PluginConfig with the given YAML body.
func MakePluginConfig(config string) PluginConfig {
	return PluginConfig{Config: config}
}

// UnmarshalConfig decodes the plugin config into cfg. Unknown fields are an error.
func (pc PluginConfig) UnmarshalConfig(cfg interface{}) error {
	if strings.TrimSpace(pc.Config) == "" {
		return nil
	}
	decoder := yaml.NewDecoder(strings.NewReader(pc.Config))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("UnmarshalConfig(): %w", err)
	}
	return nil
}
