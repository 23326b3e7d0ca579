package metrics

import (
	"net/http"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds the marketplace Prometheus collectors.
type MetricsManager struct {
	Registry               *prometheus.Registry
	AdsCreatedTotal        prometheus.Counter
	AdUpdatesTotal         prometheus.Counter
	AdDeletesTotal         prometheus.Counter
	FavouritesAddedTotal   prometheus.Counter
	FavouritesRemovedTotal prometheus.Counter
	RegistrationsTotal     prometheus.Counter
	LoginsTotal            prometheus.Counter
	APIErrorsTotal         *prometheus.CounterVec
	APILatency             *prometheus.HistogramVec
}

func newCounter(namespace, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

// NewMetricsManager registers all collectors on a private registry.
func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry:               registry,
		AdsCreatedTotal:        newCounter(serviceName, "ads_created_total", "Total number of ads created."),
		AdUpdatesTotal:         newCounter(serviceName, "ad_updates_total", "Total number of ads updated."),
		AdDeletesTotal:         newCounter(serviceName, "ad_deletes_total", "Total number of ads deleted."),
		FavouritesAddedTotal:   newCounter(serviceName, "favourites_added_total", "Total number of ads added to favourites."),
		FavouritesRemovedTotal: newCounter(serviceName, "favourites_removed_total", "Total number of ads removed from favourites."),
		RegistrationsTotal:     newCounter(serviceName, "registrations_total", "Total number of registered users."),
		LoginsTotal:            newCounter(serviceName, "logins_total", "Total number of successful logins."),
		APIErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "api_errors_total",
			Help:      "Total number of API errors by route and error type.",
		}, []string{"method", "error_type"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Name:      "api_request_latency_seconds",
			Help:      "Latency of API requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	registry.MustRegister(
		m.AdsCreatedTotal,
		m.AdUpdatesTotal,
		m.AdDeletesTotal,
		m.FavouritesAddedTotal,
		m.FavouritesRemovedTotal,
		m.RegistrationsTotal,
		m.LoginsTotal,
		m.APIErrorsTotal,
		m.APILatency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records latency for method and, when errorType is not empty, an error.
func (m *MetricsManager) ObserveRequest(method string, started time.Time, errorType string) {
	if m == nil {
		return
	}
	m.APILatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if errorType != "" {
		m.APIErrorsTotal.WithLabelValues(method, errorType).Inc()
	}
}

// StartMetricsServer serves the registry on /metrics. An empty port disables it.
func StartMetricsServer(port string, appLogger *logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
