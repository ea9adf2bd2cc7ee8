// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tcprender"

// Collector records server events as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry
	engine   string

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	frames            *prometheus.CounterVec
	violations        prometheus.Counter
	renderDuration    *prometheus.HistogramVec
	bytesReceived     prometheus.Counter
	bytesSent         prometheus.Counter
}

// NewCollector registers tcprender's metrics on registry, or on a
// fresh registry when registry is nil. engine labels the render
// duration histogram.
func NewCollector(engine string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		engine:   engine,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently open.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted since start.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Response frames written, by status.",
		}, []string{"status"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framing_violations_total",
			Help:      "Connections closed because of malformed or excess data.",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent in the rendering engine per document.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"engine"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from client connections.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to client connections.",
		}),
	}
	registry.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.frames,
		c.violations,
		c.renderDuration,
		c.bytesReceived,
		c.bytesSent,
	)
	// Pre-create both status series so dashboards see zeros.
	c.frames.WithLabelValues("success")
	c.frames.WithLabelValues("failure")
	return c
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ConnectionOpened() {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

func (c *Collector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

func (c *Collector) BytesReceived(n int) {
	c.bytesReceived.Add(float64(n))
}

func (c *Collector) BytesSent(n int) {
	c.bytesSent.Add(float64(n))
}

func (c *Collector) FramingViolation() {
	c.violations.Inc()
}

// FrameRendered records one completed exchange. duration is the time
// spent in the engine; it is zero when the document never reached it.
func (c *Collector) FrameRendered(ok bool, duration time.Duration) {
	status := "failure"
	if ok {
		status = "success"
	}
	c.frames.WithLabelValues(status).Inc()
	if duration > 0 {
		c.renderDuration.WithLabelValues(c.engine).Observe(duration.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition formats.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on listener until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "address", listener.Addr().String())
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
