// Package metrics exposes replay progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SlotReplay/internal/logger"
)

const namespace = "slotreplay"

// Metrics holds the replay collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SlotsReplayed  prometheus.Counter
	Operations     prometheus.Counter
	CursorPeriod   prometheus.Gauge
	EngineApplied  prometheus.Counter
	EngineQueueLen prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SlotsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_replayed_total",
			Help:      "Slots notified to the execution engine.",
		}),
		Operations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations reconstructed from replayed blocks.",
		}),
		CursorPeriod: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_period",
			Help:      "Period of the last replayed slot.",
		}),
		EngineApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_applied_total",
			Help:      "Finalized blocks applied by the execution engine.",
		}),
		EngineQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_queue_length",
			Help:      "Notifications waiting for the engine worker.",
		}),
	}

	m.registry.MustRegister(
		m.SlotsReplayed,
		m.Operations,
		m.CursorPeriod,
		m.EngineApplied,
		m.EngineQueueLen,
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SlotReplayed records one notified slot and its operation count.
func (m *Metrics) SlotReplayed(period uint64, operations int) {
	if m == nil {
		return
	}

	m.SlotsReplayed.Inc()
	m.Operations.Add(float64(operations))
	m.CursorPeriod.Set(float64(period))
}

// BlockApplied records one block applied by the engine.
func (m *Metrics) BlockApplied() {
	if m == nil {
		return
	}

	m.EngineApplied.Inc()
}

// QueueLength records the engine queue length.
func (m *Metrics) QueueLength(n int) {
	if m == nil {
		return
	}

	m.EngineQueueLen.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics:\n%w", err)
	}

	return nil
}
