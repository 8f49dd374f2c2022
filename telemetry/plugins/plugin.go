package plugins

// Plugin is the common interface for all telemetry plugins.
type Plugin interface {
	// Metadata returns the plugin description.
	Metadata() Metadata

	// Close will be called when the telemetry service is disposed.
	// Buffered data is not guaranteed to be flushed first.
	// Returns an error if it fails which will be surfaced in the logs.
	Close() error
}
