package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPrometheusMetrics(t *testing.T) {
	RegisterPrometheusMetrics("wbtest")
	first := EventsLogged
	RegisterPrometheusMetrics("other")
	assert.Same(t, first, EventsLogged)

	EventsLogged.WithLabelValues("log", "usage").Inc()
	AppenderFailures.WithLabelValues("opensearch", "flush").Add(2)
	assert.Equal(t, 1.0, testutil.ToFloat64(EventsLogged.WithLabelValues("log", "usage")))
	assert.Equal(t, 2.0, testutil.ToFloat64(AppenderFailures.WithLabelValues("opensearch", "flush")))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["wbtest_"+EventsLoggedName])
	assert.True(t, names["wbtest_"+AppenderFailuresName])
}
