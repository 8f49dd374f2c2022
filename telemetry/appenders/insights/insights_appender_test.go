package insights

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

var initProvider = telemetry.MakeInitProvider(nil, telemetry.AIConfig{PrimaryKey: "p"}, telemetry.Info{InstanceID: "machine", SessionID: "session"})

type mockStore struct {
	mock.Mock
	closed bool
}

func (m *mockStore) Insert(ctx context.Context, records []Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockStore) Close() {
	m.closed = true
}

// withStore swaps the store constructor for the duration of the test.
func withStore(t *testing.T, store EventStore, err error) {
	orig := openStore
	openStore = func(_ context.Context, connString, table string) (EventStore, error) {
		return store, err
	}
	t.Cleanup(func() { openStore = orig })
}

func initAppender(t *testing.T, config string) *insightsAppender {
	logger, _ := test.NewNullLogger()
	a := &insightsAppender{}
	require.NoError(t, a.Init(context.Background(), initProvider, plugins.MakePluginConfig(config), logger))
	return a
}

func TestAppenderBuilderByName(t *testing.T) {
	assert.Contains(t, appenders.Appenders, appenders.CustomInsights)
	builder, err := appenders.AppenderConstructorByName(PluginName)
	require.NoError(t, err)
	assert.Implements(t, (*appenders.Appender)(nil), builder.New())
}

func TestInitRequiresConnectionString(t *testing.T) {
	a := &insightsAppender{}
	err := a.Init(context.Background(), initProvider, plugins.MakePluginConfig(""), nil)
	require.ErrorIs(t, err, telemetry.ErrConfigurationIncomplete)
}

func TestInitStoreFailure(t *testing.T) {
	withStore(t, nil, fmt.Errorf("connection refused"))
	a := &insightsAppender{}
	err := a.Init(context.Background(), initProvider, plugins.MakePluginConfig("connection-string: postgres://x"), nil)
	require.ErrorContains(t, err, "connection refused")
}

func TestFlushPersistsRecords(t *testing.T) {
	store := &mockStore{}
	withStore(t, store, nil)
	a := initAppender(t, "connection-string: postgres://x\n")
	assert.Equal(t, DefaultTable, a.cfg.Table)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	expected := []Record{
		{Name: "one", Data: telemetry.Data{"a": "b"}, Timestamp: ts, InstanceID: "machine", SessionID: "session"},
		{Name: "two", Error: true, Timestamp: ts, InstanceID: "machine", SessionID: "session"},
	}
	store.On("Insert", mock.Anything, expected).Return(nil).Once()

	require.NoError(t, a.Log(telemetry.Event{Name: "one", Data: telemetry.Data{"a": "b"}, Timestamp: ts}))
	require.NoError(t, a.Log(telemetry.Event{Name: "two", Error: true, Timestamp: ts}))
	require.NoError(t, a.Flush(context.Background()))

	// Nothing buffered, no second insert.
	require.NoError(t, a.Flush(context.Background()))
	store.AssertExpectations(t)

	require.NoError(t, a.Close())
	assert.True(t, store.closed)
}

func TestFlushFailureDropsEvents(t *testing.T) {
	store := &mockStore{}
	withStore(t, store, nil)
	a := initAppender(t, "connection-string: postgres://x\n")
	store.On("Insert", mock.Anything, mock.Anything).Return(fmt.Errorf("db down")).Once()

	require.NoError(t, a.Log(telemetry.Event{Name: "lost"}))
	require.ErrorContains(t, a.Flush(context.Background()), "db down")
	assert.Empty(t, a.buffer)
}

func TestBufferFull(t *testing.T) {
	withStore(t, &mockStore{}, nil)
	a := initAppender(t, "connection-string: postgres://x\nmax-buffered-events: 1\n")
	a.ProvideMetrics("test")
	require.NoError(t, a.Log(telemetry.Event{Name: "1"}))
	require.ErrorContains(t, a.Log(telemetry.Event{Name: "2"}), "buffer full")
}

func TestEncodeData(t *testing.T) {
	s, err := encodeData(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = encodeData(telemetry.Data{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, s)

	_, err = encodeData(telemetry.Data{"bad": make(chan int)})
	require.Error(t, err)
}
