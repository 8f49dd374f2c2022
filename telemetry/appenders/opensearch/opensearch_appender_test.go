package opensearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

var initProvider = telemetry.MakeInitProvider(nil, telemetry.AIConfig{PrimaryKey: "p", SecondaryKey: "s-key"}, telemetry.Info{InstanceID: "test-guid"})

// fakeOpenSearch records bulk requests.
type fakeOpenSearch struct {
	mu       sync.Mutex
	paths    []string
	docs     []Document
	status   int
	response string
}

func (f *fakeOpenSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		w.Write([]byte(`{"version":{"number":"2.5.0","distribution":"opensearch"}}`))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	scanner := bufio.NewScanner(r.Body)
	for i := 0; scanner.Scan(); i++ {
		if i%2 == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(scanner.Bytes(), &doc); err == nil {
			f.docs = append(f.docs, doc)
		}
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	resp := f.response
	if resp == "" {
		resp = `{"took":1,"errors":false,"items":[]}`
	}
	w.Write([]byte(resp))
}

func makeAppender(t *testing.T, uri string, extra string) *opensearchAppender {
	logger, _ := test.NewNullLogger()
	a := &opensearchAppender{}
	cfg := plugins.MakePluginConfig("uri: " + uri + "\nindex: events\n" + extra)
	require.NoError(t, a.Init(context.Background(), initProvider, cfg, logger))
	return a
}

func TestAppenderBuilderByName(t *testing.T) {
	assert.Contains(t, appenders.Appenders, appenders.SecondaryCloud)
	builder, err := appenders.AppenderConstructorByName(PluginName)
	require.NoError(t, err)
	assert.Implements(t, (*appenders.Appender)(nil), builder.New())
}

func TestInitDefaults(t *testing.T) {
	a := &opensearchAppender{}
	require.NoError(t, a.Init(context.Background(), initProvider, plugins.MakePluginConfig(""), nil))
	assert.Equal(t, DefaultOpenSearchURI, a.cfg.URI)
	assert.Equal(t, DefaultIndexName, a.cfg.Index)
	assert.Equal(t, DefaultMaxBufferedEvents, a.cfg.MaxBufferedEvents)
	assert.Equal(t, "s-key", a.ikey)
	assert.Equal(t, "test-guid", a.guid)
}

func TestInitMissingSecondaryKey(t *testing.T) {
	a := &opensearchAppender{}
	ip := telemetry.MakeInitProvider(nil, telemetry.AIConfig{PrimaryKey: "p"}, telemetry.Info{})
	err := a.Init(context.Background(), ip, plugins.MakePluginConfig(""), nil)
	require.ErrorIs(t, err, telemetry.ErrConfigurationIncomplete)
}

func TestInitInvalidBuffer(t *testing.T) {
	a := &opensearchAppender{}
	err := a.Init(context.Background(), initProvider, plugins.MakePluginConfig("max-buffered-events: 0"), nil)
	require.ErrorContains(t, err, "max-buffered-events")
}

func TestFlushBulkIndexes(t *testing.T) {
	fake := &fakeOpenSearch{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := makeAppender(t, srv.URL, "")
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, a.Log(telemetry.Event{Name: "first", Timestamp: ts, Data: telemetry.Data{"k": "v"}}))
	require.NoError(t, a.Log(telemetry.Event{Name: "second", Timestamp: ts, Error: true}))
	require.NoError(t, a.Flush(context.Background()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{"/events/_bulk"}, fake.paths)
	require.Len(t, fake.docs, 2)
	assert.Equal(t, "first", fake.docs[0].Name)
	assert.Equal(t, "s-key", fake.docs[0].IKey)
	assert.Equal(t, "test-guid", fake.docs[0].GUID)
	assert.Equal(t, "v", fake.docs[0].Data["k"])
	assert.True(t, fake.docs[1].Error)
	assert.Empty(t, a.buffer)
}

func TestFlushEmptyBufferSkipsRequest(t *testing.T) {
	fake := &fakeOpenSearch{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := makeAppender(t, srv.URL, "")
	require.NoError(t, a.Flush(context.Background()))
	assert.Empty(t, fake.paths)
}

func TestFlushErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		errMsg   string
	}{
		{"http error", http.StatusInternalServerError, `{"error":"boom"}`, "failed to insert 1 events"},
		{"item errors", http.StatusOK, `{"took":1,"errors":true,"items":[]}`, "reported item errors"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeOpenSearch{status: tc.status, response: tc.response}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			a := makeAppender(t, srv.URL, "")
			require.NoError(t, a.Log(telemetry.Event{Name: "e"}))
			require.ErrorContains(t, a.Flush(context.Background()), tc.errMsg)
		})
	}
}

func TestBufferFull(t *testing.T) {
	a := makeAppender(t, "http://localhost:1", "max-buffered-events: 2\n")
	require.NoError(t, a.Log(telemetry.Event{Name: "1"}))
	require.NoError(t, a.Log(telemetry.Event{Name: "2"}))
	require.ErrorContains(t, a.Log(telemetry.Event{Name: "3"}), "buffer full")
}

func TestEncodeBulkBody(t *testing.T) {
	body, err := encodeBulkBody([]Document{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, `{"index":{}}`, string(lines[0]))
	assert.Contains(t, string(lines[1]), `"name":"a"`)
}

func TestProvideMetrics(t *testing.T) {
	a := makeAppender(t, "http://localhost:1", "")
	collectors := a.ProvideMetrics("test")
	require.Len(t, collectors, 1)
	require.NoError(t, a.Log(telemetry.Event{Name: "1"}))
}
