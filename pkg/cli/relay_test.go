package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) LogEvent(name string, data telemetry.Data) {
	m.Called(name, data)
}

func (m *mockSink) LogErrorEvent(name string, data telemetry.Data) {
	m.Called(name, data)
}

func (m *mockSink) SetExperimentProperty(name, value string) {
	m.Called(name, value)
}

func (m *mockSink) FlushAll(ctx context.Context) {
	m.Called(ctx)
}

func TestRelay(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &mockSink{}
	sink.On("LogEvent", "editor/opened", telemetry.Data{"languageId": "go", "lines": float64(12)}).Once()
	sink.On("SetExperimentProperty", "exp.layout", "compact").Once()
	sink.On("LogErrorEvent", "extension/crashed", telemetry.Data(nil)).Once()
	sink.On("FlushAll", mock.Anything).Once()

	input := strings.Join([]string{
		`{"name":"editor/opened","data":{"languageId":"go","lines":12}}`,
		``,
		`{"experiment":{"name":"exp.layout","value":"compact"}}`,
		`not json`,
		`{"name":"extension/crashed","error":true}`,
		`{"data":{"a":"b"}}`,
		`{"flush":true}`,
	}, "\n")

	n, err := relay(context.Background(), strings.NewReader(input), sink, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	sink.AssertExpectations(t)

	require.Len(t, hook.Entries, 2)
	assert.Contains(t, hook.Entries[0].Message, "malformed message on line 4")
	assert.Contains(t, hook.Entries[1].Message, "without name on line 6")
}

func TestRelayLineTooLong(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &mockSink{}
	sink.On("LogEvent", "editor/opened", telemetry.Data(nil)).Once()
	input := strings.Join([]string{
		`{"name":"` + strings.Repeat("a", maxLineSize) + `"}`,
		`{"name":"editor/opened"}`,
	}, "\n")

	n, err := relay(context.Background(), strings.NewReader(input), sink, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sink.AssertExpectations(t)

	require.Len(t, hook.Entries, 1)
	assert.Contains(t, hook.Entries[0].Message, "line 1, longer than")
}

func TestRelayLineAtLimit(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &mockSink{}
	name := strings.Repeat("a", maxLineSize-len(`{"name":""}`))
	sink.On("LogEvent", name, telemetry.Data(nil)).Once()

	n, err := relay(context.Background(), strings.NewReader(`{"name":"`+name+`"}`+"\r\n"), sink, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sink.AssertExpectations(t)
	assert.Empty(t, hook.Entries)
}
