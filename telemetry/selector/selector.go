// Package selector decides which appenders a telemetry service owns.
//
// The decision is a pure function of telemetry.Config so it can be tested
// without constructing any network client.
package selector

import (
	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
)

// Main returns the appender that carries events to the network. ok is false
// when telemetry is off for this configuration.
func Main(cfg telemetry.Config) (kind appenders.Kind, ok bool) {
	if !cfg.Enabled || !cfg.HasPrimaryKey {
		return "", false
	}
	// The remote side owns network egress when it is connected.
	if cfg.RemoteConnectionPresent {
		return appenders.RemoteForwarding, true
	}
	if (cfg.InternalTesting || cfg.PreferSecondary) && cfg.HasSecondaryKey {
		return appenders.SecondaryCloud, true
	}
	return appenders.PrimaryCloud, true
}

// Select returns the ordered appender kinds for cfg: the main appender, the
// local log and the custom insights appender. An empty result means the
// service is a no-op.
func Select(cfg telemetry.Config) []appenders.Kind {
	main, ok := Main(cfg)
	if !ok {
		return nil
	}
	return []appenders.Kind{main, appenders.LocalLog, appenders.CustomInsights}
}

// Assemble constructs the appenders chosen by Select using factory. An
// appender that cannot be constructed is logged and left out.
func Assemble(cfg telemetry.Config, factory appenders.Factory, logger *log.Logger) []appenders.Appender {
	kinds := Select(cfg)
	result := make([]appenders.Appender, 0, len(kinds))
	for _, kind := range kinds {
		a, err := factory.New(kind)
		if err != nil {
			logger.WithError(err).Warnf("Assemble(): unable to construct %s appender, continuing without it", kind)
			continue
		}
		result = append(result, a)
	}
	return result
}
