// Package metrics exposes store activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder implements store.Observer for one system.
type Recorder struct {
	system     string
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	persist    *prometheus.HistogramVec
}

// NewRecorder registers the keeper metrics on a fresh registry.
func NewRecorder(system string) *Recorder {
	r := &Recorder{
		system:   system,
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_operations_total",
			Help: "Store mutations by kind, operation and result.",
		}, []string{"system", "kind", "op", "result"}),
		persist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keeper_persist_seconds",
			Help:    "Time taken to write the document.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"system", "result"}),
	}
	r.registry.MustRegister(r.operations, r.persist)
	return r
}

// ObserveOperation counts one mutation.
func (r *Recorder) ObserveOperation(kind, op string, err error) {
	r.operations.WithLabelValues(r.system, kind, op, result(err)).Inc()
}

// ObservePersist records one document write.
func (r *Recorder) ObservePersist(d time.Duration, err error) {
	r.persist.WithLabelValues(r.system, result(err)).Observe(d.Seconds())
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is done. The
// returned address is the one actually bound (useful with port 0).
func (r *Recorder) Serve(ctx context.Context, addr string, log *zap.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
