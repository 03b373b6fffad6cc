package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pathval/internal/exchange"
	"pathval/internal/valuation"
)

var (
	PathsEvaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "paths_evaluated_total", Help: "Paths valued by mode"}, []string{"mode"})
	HopsEvaluatedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "hops_evaluated_total", Help: "Hops walked across all valuations"})
	CappedHopsTotal     = prometheus.NewCounter(prometheus.CounterOpts{Name: "capped_hops_total", Help: "Hops where edge depth limited the traded volume"})
	ExcessDiscarded     = prometheus.NewCounter(prometheus.CounterOpts{Name: "excess_discarded_total", Help: "Held amount above hop depth dropped by capped valuation, in source units"})
	EvaluationErrors    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "evaluation_errors_total", Help: "Valuation failures by reason"}, []string{"reason"})
	PathReturnRatio     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "path_return_ratio", Help: "Final amount over starting amount", Buckets: prometheus.LinearBuckets(0.9, 0.01, 21)})
	EvaluationLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "evaluation_latency_ms", Help: "Wall time of one monitor pass", Buckets: prometheus.ExponentialBuckets(0.1, 2, 16)})
	SnapshotLoadsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "snapshot_loads_total", Help: "Graph snapshot loads by result"}, []string{"result"})
	ProfitablePaths     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "profitable_paths", Help: "Paths returning more than they started with on the last pass"})
)

func collectorsList() []prometheus.Collector {
	return []prometheus.Collector{
		PathsEvaluatedTotal, HopsEvaluatedTotal, CappedHopsTotal, ExcessDiscarded,
		EvaluationErrors, PathReturnRatio, EvaluationLatencyMs, SnapshotLoadsTotal, ProfitablePaths,
	}
}

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := append(collectorsList(),
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn().Err(err).Msg("metric registration failed")
		}
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveTrace records a successful valuation.
func ObserveTrace(t valuation.Trace) {
	mode := "uncapped"
	if t.Capped {
		mode = "capped"
	}
	PathsEvaluatedTotal.WithLabelValues(mode).Inc()
	if t.Empty() {
		return
	}
	HopsEvaluatedTotal.Add(float64(len(t.Hops)))
	for _, h := range t.Hops {
		if h.Excess > 0 {
			CappedHopsTotal.Inc()
			ExcessDiscarded.Add(h.Excess)
		}
	}
	PathReturnRatio.Observe(t.Return())
}

// ObserveError records a failed valuation under a bounded reason label.
func ObserveError(err error) {
	EvaluationErrors.WithLabelValues(Reason(err)).Inc()
}

func ObserveLatency(d time.Duration) {
	EvaluationLatencyMs.Observe(float64(d) / float64(time.Millisecond))
}

// Reason maps an error to its metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, valuation.ErrMissingEdge):
		return "missing_edge"
	case errors.Is(err, valuation.ErrMissingAttribute):
		return "missing_attribute"
	case errors.Is(err, valuation.ErrPrecondition):
		return "precondition"
	case errors.Is(err, exchange.ErrNotInCollection):
		return "unknown_exchange"
	}
	return "other"
}
