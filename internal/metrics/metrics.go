// Package metrics exposes scheduler and delivery counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aatumaykin/habitflow/internal/cron"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements cron.Observer and notify.Observer.
type PrometheusMetrics struct {
	gatherer   prometheus.Gatherer
	armedJobs  prometheus.Gauge
	fires      *prometheus.CounterVec
	dispatches *prometheus.CounterVec
}

// InitPrometheusMetrics registers the collectors on reg. A nil reg uses a
// fresh registry, which is also what Handler serves.
func InitPrometheusMetrics(namespace string, reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &PrometheusMetrics{
		gatherer: reg,
		armedJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminder_jobs_armed",
				Help:      "Number of armed reminder jobs",
			},
		),
		fires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_fires_total",
				Help:      "Total number of reminder job fires",
			},
			[]string{"weekday"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_dispatches_total",
				Help:      "Total number of reminder deliveries",
			},
			[]string{"sender", "status"},
		),
	}

	reg.MustRegister(m.armedJobs, m.fires, m.dispatches)
	return m
}

func (m *PrometheusMetrics) ArmedJobs(n int) {
	m.armedJobs.Set(float64(n))
}

func (m *PrometheusMetrics) JobFired(key cron.Key) {
	m.fires.WithLabelValues(key.Weekday.Token()).Inc()
}

func (m *PrometheusMetrics) DispatchSent(sender string) {
	m.dispatches.WithLabelValues(sender, "sent").Inc()
}

func (m *PrometheusMetrics) DispatchFailed(sender string) {
	m.dispatches.WithLabelValues(sender, "failed").Inc()
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Server is the optional /metrics listener.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

func NewServer(addr string, m *PrometheusMetrics, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("metrics listener started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics listener failed", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
