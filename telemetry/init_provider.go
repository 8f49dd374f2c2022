package telemetry

// InitProvider supplies the host capabilities an appender may need during Init.
type InitProvider interface {
	// RemoteConnection returns nil when no remote server is connected.
	RemoteConnection() RemoteConnection
	AIConfig() AIConfig
	TelemetryInfo() Info
}

// ServiceInitProvider is the InitProvider handed to appenders by the service.
type ServiceInitProvider struct {
	remote RemoteConnection
	ai     AIConfig
	info   Info
}

// MakeInitProvider constructs an init provider.
func MakeInitProvider(remote RemoteConnection, ai AIConfig, info Info) *ServiceInitProvider {
	return &ServiceInitProvider{
		remote: remote,
		ai:     ai,
		info:   info,
	}
}

// RemoteConnection returns the remote connection, if any.
func (p *ServiceInitProvider) RemoteConnection() RemoteConnection {
	return p.remote
}

// AIConfig returns the product ingestion keys.
func (p *ServiceInitProvider) AIConfig() AIConfig {
	return p.ai
}

// TelemetryInfo returns the resolved installation and session identifiers.
func (p *ServiceInitProvider) TelemetryInfo() Info {
	return p.info
}
