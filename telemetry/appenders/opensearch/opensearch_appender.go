package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed" // used to embed config
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// PluginName to use when configuring.
const PluginName = string(appenders.SecondaryCloud)

const (
	// DefaultOpenSearchURI is used when no uri is configured.
	DefaultOpenSearchURI = "https://localhost:9200"
	// DefaultIndexName is used when no index is configured.
	DefaultIndexName = "workbench-telemetry"
	// DefaultMaxBufferedEvents bounds the buffer when not configured.
	DefaultMaxBufferedEvents = 1000
)

// Document is a single event as indexed in OpenSearch.
type Document struct {
	Time  time.Time      `json:"timestamp"`
	Name  string         `json:"name"`
	Data  telemetry.Data `json:"data,omitempty"`
	Error bool           `json:"error,omitempty"`
	// IKey is the secondary ingestion key.
	IKey string `json:"ikey"`
	GUID string `json:"guid"`
}

// opensearchAppender buffers events and bulk-indexes them on Flush.
type opensearchAppender struct {
	cfg      AppenderConfig
	client   *opensearch.Client
	ikey     string
	guid     string
	logger   *logrus.Logger
	mu       sync.Mutex
	buffer   []Document
	buffered prometheus.Gauge
}

//go:embed sample.yaml
var sampleConfig string

var metadata = plugins.Metadata{
	Name:         PluginName,
	Description:  "Bulk index telemetry events into OpenSearch using the secondary ingestion key.",
	Deprecated:   false,
	SampleConfig: sampleConfig,
}

func (a *opensearchAppender) Metadata() plugins.Metadata {
	return metadata
}

// initializeOpenSearchClient creates a new OpenSearch client.
func initializeOpenSearchClient(cfg AppenderConfig) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
		Addresses: []string{cfg.URI},
		Username:  cfg.UserName,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create new OpenSearch client with URI %s: %w", cfg.URI, err)
	}
	return client, nil
}

func (a *opensearchAppender) Init(_ context.Context, initProvider telemetry.InitProvider, cfg plugins.PluginConfig, logger *logrus.Logger) error {
	a.cfg = AppenderConfig{
		URI:               DefaultOpenSearchURI,
		Index:             DefaultIndexName,
		MaxBufferedEvents: DefaultMaxBufferedEvents,
	}
	if err := cfg.UnmarshalConfig(&a.cfg); err != nil {
		return fmt.Errorf("init failure in unmarshalConfig: %v", err)
	}
	if a.cfg.MaxBufferedEvents <= 0 {
		return fmt.Errorf("init failure: max-buffered-events must be positive, got %d", a.cfg.MaxBufferedEvents)
	}

	a.ikey = initProvider.AIConfig().SecondaryKey
	if a.ikey == "" {
		return fmt.Errorf("%w: secondary key is missing", telemetry.ErrConfigurationIncomplete)
	}
	a.guid = initProvider.TelemetryInfo().InstanceID
	a.logger = logger
	if a.logger == nil {
		a.logger = logrus.StandardLogger()
	}

	client, err := initializeOpenSearchClient(a.cfg)
	if err != nil {
		return err
	}
	a.client = client
	a.buffer = make([]Document, 0, a.cfg.MaxBufferedEvents)
	return nil
}

func (a *opensearchAppender) Log(event telemetry.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buffer) >= a.cfg.MaxBufferedEvents {
		return fmt.Errorf("buffer full (%d events), dropping %s", len(a.buffer), event.Name)
	}
	a.buffer = append(a.buffer, Document{
		Time:  event.Timestamp,
		Name:  event.Name,
		Data:  event.Data,
		Error: event.Error,
		IKey:  a.ikey,
		GUID:  a.guid,
	})
	if a.buffered != nil {
		a.buffered.Set(float64(len(a.buffer)))
	}
	return nil
}

// takeBuffer removes and returns the buffered documents.
func (a *opensearchAppender) takeBuffer() []Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	docs := a.buffer
	a.buffer = make([]Document, 0, a.cfg.MaxBufferedEvents)
	if a.buffered != nil {
		a.buffered.Set(0)
	}
	return docs
}

// encodeBulkBody renders the documents in the bulk API's newline-delimited format.
func encodeBulkBody(docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		buf.WriteString(`{"index":{}}` + "\n")
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// Flush sends the buffered events. Events of a failed flush are dropped.
func (a *opensearchAppender) Flush(ctx context.Context) error {
	docs := a.takeBuffer()
	if len(docs) == 0 {
		return nil
	}
	body, err := encodeBulkBody(docs)
	if err != nil {
		return fmt.Errorf("failed to encode %d events: %w", len(docs), err)
	}
	req := opensearchapi.BulkRequest{
		Index: a.cfg.Index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("failed to insert %d events: %w", len(docs), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to insert %d events: %s", len(docs), res.String())
	}
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read bulk response: %w", err)
	}
	var br bulkResponse
	if err := json.Unmarshal(respBody, &br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if br.Errors {
		return fmt.Errorf("bulk insert of %d events reported item errors", len(docs))
	}
	a.logger.Debugf("indexed %d events into %s", len(docs), a.cfg.Index)
	return nil
}

func (a *opensearchAppender) Close() error {
	return nil
}

// ProvideMetrics exposes the number of buffered events.
func (a *opensearchAppender) ProvideMetrics(subsystem string) []prometheus.Collector {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffered = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "opensearch_buffered_events",
		Help:      "Events waiting for the next OpenSearch flush.",
	})
	return []prometheus.Collector{a.buffered}
}

func init() {
	appenders.Register(appenders.SecondaryCloud, appenders.AppenderConstructorFunc(func() appenders.Appender {
		return &opensearchAppender{}
	}))
}
