package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

// maxLineSize bounds a single relayed message.
const maxLineSize = 1024 * 1024

// Sink is the part of the telemetry service the relay drives.
type Sink interface {
	LogEvent(name string, data telemetry.Data)
	LogErrorEvent(name string, data telemetry.Data)
	SetExperimentProperty(name, value string)
	FlushAll(ctx context.Context)
}

type experiment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// message is one line of relay input. Exactly one of Name, Experiment or
// Flush is expected to be set.
type message struct {
	Name       string         `json:"name"`
	Data       telemetry.Data `json:"data"`
	Error      bool           `json:"error"`
	Experiment *experiment    `json:"experiment"`
	Flush      bool           `json:"flush"`
}

// relay reads newline delimited JSON messages from in until EOF and hands
// them to sink. Malformed and oversized lines are logged and skipped. The
// number of events handed to the sink is returned.
func relay(ctx context.Context, in io.Reader, sink Sink, logger *log.Logger) (int, error) {
	reader := bufio.NewReaderSize(in, 64*1024)

	var buf []byte
	events := 0
	line := 0
	for {
		raw, tooLong, err := readLine(reader, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return events, fmt.Errorf("relay(): reading input failed after line %d: %w", line, err)
		}
		line++
		buf = raw
		if tooLong {
			logger.Warnf("relay(): skipping message on line %d, longer than %d bytes", line, maxLineSize)
			continue
		}
		if len(raw) == 0 {
			continue
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.WithError(err).Warnf("relay(): skipping malformed message on line %d", line)
			continue
		}

		switch {
		case msg.Experiment != nil:
			sink.SetExperimentProperty(msg.Experiment.Name, msg.Experiment.Value)
		case msg.Flush:
			sink.FlushAll(ctx)
		case msg.Name != "" && msg.Error:
			sink.LogErrorEvent(msg.Name, msg.Data)
			events++
		case msg.Name != "":
			sink.LogEvent(msg.Name, msg.Data)
			events++
		default:
			logger.Warnf("relay(): skipping message without name on line %d", line)
		}
	}
	return events, nil
}

// readLine reads the next line into buf without its terminator. A line over
// maxLineSize is consumed entirely and reported as too long.
func readLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	tooLong := false
	for {
		fragment, isPrefix, err := r.ReadLine()
		if err != nil {
			return buf, tooLong, err
		}
		if !tooLong {
			if len(buf)+len(fragment) > maxLineSize {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, fragment...)
			}
		}
		if !isPrefix {
			return buf, tooLong, nil
		}
	}
}
