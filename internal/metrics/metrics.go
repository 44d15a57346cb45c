package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vaultDeposit/internal/model"
)

// Recorder tracks step transitions as Prometheus metrics.
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
	now     func() time.Time
}

// NewRecorder registers the step metrics on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultdeposit",
			Name:      "step_transitions_total",
			Help:      "Step status transitions by step index and status",
		}, []string{"step", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultdeposit",
			Name:      "step_outcomes_total",
			Help:      "Terminal step outcomes",
		}, []string{"step", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vaultdeposit",
			Name:      "step_duration_seconds",
			Help:      "Time from submission to a terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"step", "outcome"}),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
	r.registry.MustRegister(r.transitions, r.outcomes, r.duration)
	return r
}

// Observe matches the orchestrator's observer signature.
func (r *Recorder) Observe(sessionID string, step model.TransactionStep) {
	index := strconv.Itoa(step.Index)
	r.transitions.WithLabelValues(index, string(step.Status)).Inc()

	key := sessionID + "/" + index
	r.mu.Lock()
	defer r.mu.Unlock()

	switch step.Status {
	case model.StepPending:
		r.started[key] = r.now()
	case model.StepSuccess, model.StepError:
		outcome := string(step.Status)
		r.outcomes.WithLabelValues(index, outcome).Inc()
		if start, ok := r.started[key]; ok {
			r.duration.WithLabelValues(index, outcome).Observe(r.now().Sub(start).Seconds())
			delete(r.started, key)
		}
	case model.StepIdle:
		delete(r.started, key)
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server starting", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
