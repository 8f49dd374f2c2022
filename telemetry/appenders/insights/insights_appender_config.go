package insights

// AppenderConfig specific to the insights appender
type AppenderConfig struct {
	// <code>connection-string</code> of the PostgreSQL insights database.
	ConnectionString string `yaml:"connection-string"`
	// <code>table</code> receives the events.
	Table string `yaml:"table"`
	// <code>max-buffered-events</code> bounds the number of events held between flushes.
	MaxBufferedEvents int `yaml:"max-buffered-events"`
}
