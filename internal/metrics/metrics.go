// Package metrics exposes wallet activity as Prometheus metrics on a private
// registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet"

type Service struct {
	Registry *prometheus.Registry

	sendsTotal      *prometheus.CounterVec
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec
}

func New() *Service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(registry)

	return &Service{
		Registry: registry,
		sendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Sends by final state.",
		}, []string{"state"}),
		rpcCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "JSON-RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		rpcCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "JSON-RPC call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method"}),
	}
}

// ObserveSend counts a finished send.
func (s *Service) ObserveSend(state string) {
	s.sendsTotal.WithLabelValues(state).Inc()
}

// ObserveCall records one JSON-RPC call.
func (s *Service) ObserveCall(method string, outcome string, duration time.Duration) {
	s.rpcCallsTotal.WithLabelValues(method, outcome).Inc()
	s.rpcCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (s *Service) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	util.LogFromContext(ctx).Info().Str("addr", addr).Msg("Serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
