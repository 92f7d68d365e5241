// Package metrics exposes Prometheus counters for daemon-mode runs.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cfddns"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfddns_runs_total",
			Help: "Total number of update runs by outcome",
		},
		[]string{"outcome"},
	)
	recordsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cfddns_records_updated_total",
		Help: "Count of DNS records rewritten with a new address",
	})
	lastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cfddns_last_run_success",
		Help: "1 when the most recent update run completed without error",
	})
)

func init() {
	prometheus.MustRegister(runsTotal, recordsUpdated, lastRunSuccess)
}

// Instrument wraps a runner so every run is recorded.
func Instrument(next cfddns.Runner) cfddns.Runner {
	return runner{next: next}
}

type runner struct {
	next cfddns.Runner
}

func (r runner) Run(ctx context.Context) (cfddns.Result, error) {
	result, err := r.next.Run(ctx)
	observe(result, err)
	return result, err
}

func observe(result cfddns.Result, err error) {
	switch {
	case err != nil:
		runsTotal.WithLabelValues("error").Inc()
		lastRunSuccess.Set(0)
		return
	case result.Updated > 0:
		runsTotal.WithLabelValues("updated").Inc()
		recordsUpdated.Add(float64(result.Updated))
	case result.Matched > 0:
		runsTotal.WithLabelValues("current").Inc()
	default:
		runsTotal.WithLabelValues("no_records").Inc()
	}
	lastRunSuccess.Set(1)
}

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}
