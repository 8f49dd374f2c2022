package logappender

// AppenderConfig specific to the log appender
type AppenderConfig struct {
	// <code>file</code> is the path of the telemetry log file.
	File string `yaml:"file"`
}
