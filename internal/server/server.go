package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/internal/api/handlers"
	"github.com/inferloop/mlregistry/internal/fetch"
	"github.com/inferloop/mlregistry/internal/metadata"
	"github.com/inferloop/mlregistry/internal/observability/logmonitor"
	"github.com/inferloop/mlregistry/internal/observability/metrics"
	"github.com/inferloop/mlregistry/internal/registry"
)

// Server wires the registry, the HTTP API and the metrics endpoint together.
type Server struct {
	config        *Config
	logger        *logrus.Logger
	registry      *registry.Registry
	collector     *metrics.Collector
	httpServer    *http.Server
	metricsServer *http.Server
}

// New assembles a server from configuration: metadata store with optional
// Influx mirror and Redis cache, artifact storage via the factory, fetcher,
// and the API handler on top.
func New(ctx context.Context, config *Config, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	store, err := metadata.NewStore(config.Metadata, logger)
	if err != nil {
		return nil, err
	}

	if config.Influx != nil {
		sink, err := metadata.NewInfluxSink(config.Influx, logger)
		if err != nil {
			return nil, err
		}
		store.SetSnapshotSink(sink)
	}

	if config.Cache != nil {
		cache, err := metadata.NewRecordCache(ctx, config.Cache, logger)
		if err != nil {
			return nil, err
		}
		store.SetRecordCache(cache)
	}

	reg, err := registry.NewRegistry(config.Registry, store, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector("mlregistry")
	reg.SetCollector(collector)

	if config.LogMonitor != nil {
		logger.AddHook(logmonitor.New(config.LogMonitor, logmonitor.AlertFunc(
			func(level logrus.Level, count int64, message string) {
				collector.CountLogAlert(level.String())
			})))
	}

	fetcher, err := fetch.NewFetcher(config.Fetcher, logger)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	handlers.NewHandler(reg, fetcher, logger).RegisterRoutes(router)
	router.Use(requestLogging(logger))

	s := &Server{
		config:    config,
		logger:    logger,
		registry:  reg,
		collector: collector,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	s.metricsServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.MetricsPort),
		Handler: metricsMux,
	}

	return s, nil
}

// Registry exposes the facade, mainly for the CLI's embedded mode.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start serves the API and metrics endpoints until the context is cancelled,
// then shuts both down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("API server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		s.logger.WithField("addr", s.metricsServer.Addr).Info("Metrics server listening")
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.metricsServer.Shutdown(shutdownCtx)
}

// requestLogging logs one line per request with method, path and latency.
func requestLogging(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("Handled request")
		})
	}
}
