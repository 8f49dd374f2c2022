package loggers

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ThreadSafeWriter serializes writes to the wrapped writer.
type ThreadSafeWriter struct {
	Writer io.Writer
	Mutex  *sync.Mutex
}

// Write implements io.Writer.
func (w ThreadSafeWriter) Write(p []byte) (n int, err error) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	return w.Writer.Write(p)
}

// MakeThreadSafeLogger returns a JSON logger at the given level, writing to
// logFile or to stdout when logFile is empty.
func MakeThreadSafeLogger(level log.Level, logFile string) (*log.Logger, error) {
	var writer io.Writer = os.Stdout
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writer = f
	}
	return MakeThreadSafeLoggerWithWriter(level, writer), nil
}

// MakeThreadSafeLoggerWithWriter returns a JSON logger writing to writer.
func MakeThreadSafeLoggerWithWriter(level log.Level, writer io.Writer) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{
		DisableHTMLEscape: true,
	})
	logger.SetOutput(ThreadSafeWriter{
		Writer: writer,
		Mutex:  &sync.Mutex{},
	})
	logger.SetLevel(level)
	return logger
}

// PluginLogFormatter adds the plugin type and name to every entry.
type PluginLogFormatter struct {
	Formatter log.Formatter
	Type      string
	Name      string
}

// Format implements log.Formatter.
func (f PluginLogFormatter) Format(entry *log.Entry) ([]byte, error) {
	entry.Data["__type"] = f.Type
	entry.Data["_name"] = f.Name
	return f.Formatter.Format(entry)
}

// MakePluginLogger derives a logger for a plugin from the parent logger,
// sharing its output and level.
func MakePluginLogger(parent *log.Logger, pluginType, name string) *log.Logger {
	lgr := log.New()
	lgr.SetOutput(parent.Out)
	lgr.SetLevel(parent.Level)
	lgr.SetFormatter(PluginLogFormatter{
		Formatter: &log.JSONFormatter{DisableHTMLEscape: true},
		Type:      pluginType,
		Name:      name,
	})
	return lgr
}
