package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/loggers"
	"github.com/gitpod-io/workbench-telemetry/telemetry/metrics"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
	"github.com/gitpod-io/workbench-telemetry/telemetry/selector"
	"github.com/gitpod-io/workbench-telemetry/telemetry/storage"
)

// Service is the telemetry facade used by the rest of the product.
// None of its methods return errors or block on network I/O, except
// FlushAll which waits for the appenders to settle.
type Service interface {
	LogEvent(name string, data telemetry.Data)
	LogErrorEvent(name string, data telemetry.Data)
	FlushAll(ctx context.Context)
	SetExperimentProperty(name, value string)
	GetTelemetryInfo() telemetry.Info
	Status() Status
	Dispose()
}

// Lifecycle states.
const (
	StateActive   = "active"
	StateDisposed = "disposed"
)

// Status is a point in time description of the service.
type Status struct {
	State      string   `json:"state"`
	Enabled    bool     `json:"enabled"`
	Level      string   `json:"level"`
	Appenders  []string `json:"appenders"`
	InstanceID string   `json:"instanceId"`
	SessionID  string   `json:"sessionId"`
	Sequence   uint64   `json:"sequence"`
}

// Options configure New.
type Options struct {
	Level              telemetry.Level
	SendErrorTelemetry bool
	Disabled           bool
	InternalTesting    bool
	Product            Product
	AIConfig           telemetry.AIConfig

	// Remote is nil when no remote server is connected.
	Remote telemetry.RemoteConnection
	// Storage defaults to an in-memory store.
	Storage storage.Storage
	// Factory defaults to appenders.RegistryFactory.
	Factory appenders.Factory
	// AppenderConfigs holds the YAML configuration of each appender.
	AppenderConfigs map[appenders.Kind]string

	DataDir       string
	HomeDir       string
	MetricsPrefix string
	Logger        *log.Logger
}

// Failure logs are limited per appender; failures are always counted.
const (
	failureLogInterval = time.Second
	failureLogBurst    = 10
)

// Facade owns the active service and its lifecycle.
type Facade struct {
	impl     Service
	disposed atomic.Bool
}

// New resolves the telemetry identifiers, selects and initializes the
// appenders and returns the facade. When no appender is usable the facade
// is a no-op that still reports telemetry info.
func New(ctx context.Context, opts Options) (*Facade, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("New(): logger was empty")
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStorage()
	}
	if opts.Factory == nil {
		opts.Factory = appenders.RegistryFactory
	}
	if opts.HomeDir == "" {
		opts.HomeDir, _ = os.UserHomeDir()
	}

	now := time.Now()
	state := resolveSession(opts.Storage, opts.Product, now, opts.Logger)
	common := resolveCommonProperties(opts.Product, state, nil)

	cfg := telemetry.MakeConfig(
		opts.AIConfig,
		!opts.Disabled && opts.Level != telemetry.LevelOff,
		opts.InternalTesting,
		opts.Remote != nil,
		common)

	selected := selector.Assemble(cfg, opts.Factory, opts.Logger)
	if len(selected) == 0 {
		opts.Logger.Infof("telemetry is disabled")
		return &Facade{impl: nullService{level: opts.Level, info: state.info}}, nil
	}

	initProvider := telemetry.MakeInitProvider(opts.Remote, opts.AIConfig, state.info)
	active := make([]appenders.Appender, 0, len(selected))
	for _, a := range selected {
		name := a.Metadata().Name
		lgr, pcfg, err := makePluginConfig(opts, name)
		if err != nil {
			opts.Logger.WithError(err).Warnf("New(): skipping %s appender", name)
			continue
		}
		if err := a.Init(ctx, initProvider, pcfg, lgr); err != nil {
			opts.Logger.WithError(err).Warnf("New(): unable to initialize %s appender, continuing without it", name)
			_ = a.Close()
			continue
		}
		opts.Logger.Infof("Initialized appender: %s", name)
		active = append(active, a)
	}
	if len(active) == 0 {
		opts.Logger.Warnf("New(): no appender could be initialized, telemetry is disabled")
		return &Facade{impl: nullService{level: opts.Level, info: state.info}}, nil
	}

	registerAppenderMetrics(active, opts.MetricsPrefix, opts.Logger)
	metrics.AppendersActive.Set(float64(len(active)))

	limiters := make(map[string]*rate.Limiter, len(active))
	for _, a := range active {
		limiters[a.Metadata().Name] = rate.NewLimiter(rate.Every(failureLogInterval), failureLogBurst)
	}

	return &Facade{impl: &baseService{
		appenders:    active,
		level:        opts.Level,
		sendErrors:   opts.SendErrorTelemetry,
		info:         state.info,
		common:       common,
		cleaner:      newPathCleaner(opts.HomeDir),
		sessionStart: now,
		logger:       opts.Logger,
		logLimits:    limiters,
	}}, nil
}

// makePluginConfig creates the logger and configuration handed to an appender.
func makePluginConfig(opts Options, name string) (*log.Logger, plugins.PluginConfig, error) {
	lgr := loggers.MakePluginLogger(opts.Logger, string(plugins.Appender), name)
	config := plugins.MakePluginConfig(opts.AppenderConfigs[appenders.Kind(name)])
	if opts.DataDir != "" {
		config.DataDir = path.Join(opts.DataDir, fmt.Sprintf("%s_%s", plugins.Appender, name))
		if err := os.MkdirAll(config.DataDir, os.ModePerm); err != nil {
			return nil, plugins.PluginConfig{}, fmt.Errorf("makePluginConfig(): unable to create appender data directory: %w", err)
		}
	}
	return lgr, config, nil
}

// registerAppenderMetrics registers the appender collectors with the default
// registry. Collectors that are already registered, for example by an earlier
// facade in the same process, keep exporting the earlier values.
func registerAppenderMetrics(active []appenders.Appender, subsystem string, logger *log.Logger) {
	if subsystem == "" {
		subsystem = metrics.DefaultSubsystem
	}
	var collectors []prometheus.Collector
	for _, a := range active {
		if v, ok := a.(telemetry.MetricsProvider); ok {
			collectors = append(collectors, v.ProvideMetrics(subsystem)...)
		}
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				logger.WithError(err).Warn("registerAppenderMetrics(): collector already registered, keeping the existing one")
				continue
			}
			logger.WithError(err).Error("registerAppenderMetrics(): unable to register collector")
		}
	}
}

// LogEvent records a usage event.
func (f *Facade) LogEvent(name string, data telemetry.Data) {
	if f.disposed.Load() {
		return
	}
	f.impl.LogEvent(name, data)
}

// LogErrorEvent records an error event.
func (f *Facade) LogErrorEvent(name string, data telemetry.Data) {
	if f.disposed.Load() {
		return
	}
	f.impl.LogErrorEvent(name, data)
}

// FlushAll flushes every appender concurrently and returns once all have
// settled. Failures are logged.
func (f *Facade) FlushAll(ctx context.Context) {
	if f.disposed.Load() {
		return
	}
	f.impl.FlushAll(ctx)
}

// SetExperimentProperty sets a common property for events logged afterwards.
func (f *Facade) SetExperimentProperty(name, value string) {
	if f.disposed.Load() {
		return
	}
	f.impl.SetExperimentProperty(name, value)
}

// GetTelemetryInfo returns the installation and session identifiers.
func (f *Facade) GetTelemetryInfo() telemetry.Info {
	return f.impl.GetTelemetryInfo()
}

// Status reports the lifecycle state and the owned appenders.
func (f *Facade) Status() Status {
	s := f.impl.Status()
	s.State = StateActive
	if f.disposed.Load() {
		s.State = StateDisposed
	}
	return s
}

// Dispose closes every appender. Only the first call has an effect.
func (f *Facade) Dispose() {
	if !f.disposed.CompareAndSwap(false, true) {
		return
	}
	f.impl.Dispose()
}

type baseService struct {
	appenders  []appenders.Appender
	level      telemetry.Level
	sendErrors bool
	info       telemetry.Info
	cleaner    *pathCleaner
	logger     *log.Logger
	logLimits  map[string]*rate.Limiter

	sessionStart time.Time
	sequence     atomic.Uint64

	mu     sync.RWMutex
	common map[string]string
}

func (s *baseService) LogEvent(name string, data telemetry.Data) {
	if s.level < telemetry.LevelAll {
		return
	}
	s.dispatch(s.makeEvent(name, data, false))
}

func (s *baseService) LogErrorEvent(name string, data telemetry.Data) {
	if s.level < telemetry.LevelError || !s.sendErrors {
		return
	}
	s.dispatch(s.makeEvent(name, data, true))
}

// makeEvent cleans the payload and adds the common properties, which take
// precedence over event data with the same key.
func (s *baseService) makeEvent(name string, data telemetry.Data, isError bool) telemetry.Event {
	now := time.Now()
	seq := s.sequence.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := s.cleaner.clean(data, len(s.common)+3)
	payload[TimestampProperty] = now.UTC().Format(time.RFC3339Nano)
	payload[SessionTimeProperty] = strconv.FormatInt(now.Sub(s.sessionStart).Milliseconds(), 10)
	payload[SequenceProperty] = strconv.FormatUint(seq, 10)
	for k, v := range s.common {
		payload[k] = v
	}
	return telemetry.Event{
		Name:      name,
		Data:      payload,
		Error:     isError,
		Timestamp: now,
	}
}

func eventClass(event telemetry.Event) string {
	if event.Error {
		return "error"
	}
	return "usage"
}

func (s *baseService) dispatch(event telemetry.Event) {
	class := eventClass(event)
	for _, a := range s.appenders {
		name := a.Metadata().Name
		if err := s.safeCall(name, "log", func() error { return a.Log(event) }); err != nil {
			continue
		}
		metrics.EventsLogged.WithLabelValues(name, class).Inc()
	}
}

// safeCall runs f and converts errors and panics into a logged AppenderError.
func (s *baseService) safeCall(name, op string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = &telemetry.AppenderError{Appender: name, Op: op, Err: err}
			metrics.AppenderFailures.WithLabelValues(name, op).Inc()
			if limiter, ok := s.logLimits[name]; !ok || limiter.Allow() {
				s.logger.WithError(err).Errorf("telemetry appender %s failed", name)
			}
		}
	}()
	return f()
}

func (s *baseService) FlushAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range s.appenders {
		wg.Add(1)
		go func(a appenders.Appender) {
			defer wg.Done()
			name := a.Metadata().Name
			start := time.Now()
			_ = s.safeCall(name, "flush", func() error { return a.Flush(ctx) })
			metrics.FlushTimeSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}(a)
	}
	wg.Wait()
}

func (s *baseService) SetExperimentProperty(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.common[name] = value
}

func (s *baseService) GetTelemetryInfo() telemetry.Info {
	return s.info
}

func (s *baseService) Status() Status {
	names := make([]string, 0, len(s.appenders))
	for _, a := range s.appenders {
		names = append(names, a.Metadata().Name)
	}
	return Status{
		Enabled:    true,
		Level:      s.level.String(),
		Appenders:  names,
		InstanceID: s.info.InstanceID,
		SessionID:  s.info.SessionID,
		Sequence:   s.sequence.Load(),
	}
}

// Dispose closes the appenders without waiting for pending flushes.
func (s *baseService) Dispose() {
	for _, a := range s.appenders {
		name := a.Metadata().Name
		_ = s.safeCall(name, "close", a.Close)
	}
	metrics.AppendersActive.Set(0)
}

// nullService is used when telemetry is disabled.
type nullService struct {
	level telemetry.Level
	info  telemetry.Info
}

func (nullService) LogEvent(string, telemetry.Data)      {}
func (nullService) LogErrorEvent(string, telemetry.Data) {}
func (nullService) FlushAll(context.Context)             {}
func (nullService) SetExperimentProperty(string, string) {}
func (nullService) Dispose()                             {}

func (n nullService) GetTelemetryInfo() telemetry.Info {
	return n.info
}

func (n nullService) Status() Status {
	return Status{
		Level:      n.level.String(),
		Appenders:  []string{},
		InstanceID: n.info.InstanceID,
		SessionID:  n.info.SessionID,
	}
}
