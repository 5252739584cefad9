package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucentfeed/lucent/internal/feed"
	"github.com/lucentfeed/lucent/internal/middleware"
)

// RouterConfig wires the router's handlers and middleware.
type RouterConfig struct {
	Feed   *feed.Service
	Health HealthHandlersConfig

	// Registry serves /metrics. Falls back to the default gatherer when nil.
	Registry *prometheus.Registry

	Logger *slog.Logger

	// TracingEnabled wraps the router in otelhttp instrumentation.
	TracingEnabled bool
	ServiceName    string
}

// NewRouter assembles the full HTTP handler: routes plus the
// RequestID -> Tracing -> Logging middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	feedHandlers := NewFeedHandlers(cfg.Feed, logger)
	healthHandlers := NewHealthHandlers(cfg.Health)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/feed/rank", feedHandlers.Rank)
	mux.HandleFunc("/v1/feed/views", feedHandlers.Views)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)

	if cfg.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"lucent-ranker","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> Logging
	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "lucent-ranker"
		}
		handler = middleware.Tracing(name)(handler)
	}
	handler = middleware.RequestID(handler)

	return handler
}
