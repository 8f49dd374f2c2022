package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/service"
)

// StatusProvider is the subset of the telemetry service required by the handlers.
type StatusProvider interface {
	Status() service.Status
	GetTelemetryInfo() telemetry.Info
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error": "%s"}`, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, string(data))
}

func makeHealthHandler(p StatusProvider) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		status := p.Status()
		if status.State == service.StateDisposed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			data, _ := json.Marshal(status)
			fmt.Fprint(w, string(data))
			return
		}
		writeJSON(w, status)
	}
}

func makeInfoHandler(p StatusProvider) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, p.GetTelemetryInfo())
	}
}

func serve(logger *log.Logger, name string, srv *http.Server) func(ctx context.Context) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to start %s server: %s", name, err)
		}
	}()

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to shutdown %s server: %s", name, err)
		}
	}
}

// StartServer starts an http server that exposes the health and info endpoints.
// A callback is returned that can be used to gracefully shutdown the server.
func StartServer(logger *log.Logger, p StatusProvider, address string) (func(ctx context.Context), error) {
	if p == nil {
		return nil, fmt.Errorf("StartServer(): status provider was empty")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", makeHealthHandler(p))
	mux.HandleFunc("/info", makeInfoHandler(p))

	return serve(logger, "API", &http.Server{
		Addr:    address,
		Handler: mux,
	}), nil
}

// StartMetricsServer serves the default prometheus registry on /metrics.
func StartMetricsServer(logger *log.Logger, address string) func(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Infof("metrics serving on %s", address)
	return serve(logger, "metrics", &http.Server{
		Addr:    address,
		Handler: mux,
	})
}
