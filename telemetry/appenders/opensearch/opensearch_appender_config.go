package opensearch

// AppenderConfig specific to the OpenSearch appender
type AppenderConfig struct {
	// <code>uri</code> is the OpenSearch endpoint.
	URI string `yaml:"uri"`
	// <code>index</code> receives the event documents.
	Index string `yaml:"index"`
	// <code>username</code> for basic auth.
	UserName string `yaml:"username"`
	// <code>password</code> for basic auth.
	Password string `yaml:"password"`
	// <code>insecure-skip-verify</code> disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure-skip-verify"`
	// <code>max-buffered-events</code> bounds the number of events held between flushes.
	MaxBufferedEvents int `yaml:"max-buffered-events"`
}
