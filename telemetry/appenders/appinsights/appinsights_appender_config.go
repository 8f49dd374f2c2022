package appinsights

import "time"

// AppenderConfig specific to the Application Insights appender
type AppenderConfig struct {
	// <code>endpoint-url</code> overrides the ingestion endpoint.
	EndpointURL string `yaml:"endpoint-url"`
	// <code>event-prefix</code> is prepended to event names, separated by a slash.
	EventPrefix string `yaml:"event-prefix"`
	// <code>max-batch-size</code> is the number of events buffered before sending.
	MaxBatchSize int `yaml:"max-batch-size"`
	// <code>max-batch-interval</code> is the longest time an event is buffered.
	MaxBatchInterval time.Duration `yaml:"max-batch-interval"`
}
