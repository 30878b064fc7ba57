// Package metrics exposes Prometheus metrics for the scan loop, signal
// flow, and portfolio state.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	scansTotal     prometheus.Counter
	scanDuration   prometheus.Histogram
	scanErrors     prometheus.Counter
	signalsTotal   *prometheus.CounterVec
	tradesTotal    *prometheus.CounterVec
	openPositions  prometheus.Gauge
	totalExposure  prometheus.Gauge
	marketsScanned prometheus.Gauge
}

// NewRegistry creates a metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_scans_total",
			Help: "Total number of completed scan cycles",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherbot_scan_duration_seconds",
			Help:    "Scan cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_scan_errors_total",
			Help: "Total number of scan cycles that failed",
		}),
		signalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_signals_total",
			Help: "Signals emitted by the strategy",
		}, []string{"action"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_trades_total",
			Help: "Trade executions by side and result",
		}, []string{"side", "result"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_open_positions",
			Help: "Number of open positions",
		}),
		totalExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_total_exposure_usd",
			Help: "Total USD exposure across open positions",
		}),
		marketsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_markets_scanned",
			Help: "Weather markets in the latest snapshot",
		}),
	}

	reg.MustRegister(
		r.scansTotal,
		r.scanDuration,
		r.scanErrors,
		r.signalsTotal,
		r.tradesTotal,
		r.openPositions,
		r.totalExposure,
		r.marketsScanned,
	)
	return r
}

// RecordScan records one completed scan cycle.
func (r *Registry) RecordScan(duration time.Duration, markets int) {
	r.scansTotal.Inc()
	r.scanDuration.Observe(duration.Seconds())
	r.marketsScanned.Set(float64(markets))
}

// RecordScanError records a failed scan cycle.
func (r *Registry) RecordScanError() {
	r.scanErrors.Inc()
}

// RecordSignal records one emitted signal.
func (r *Registry) RecordSignal(action string) {
	r.signalsTotal.WithLabelValues(action).Inc()
}

// RecordTrade records one trade attempt.
func (r *Registry) RecordTrade(side string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	r.tradesTotal.WithLabelValues(side, result).Inc()
}

// SetPortfolio updates the portfolio gauges.
func (r *Registry) SetPortfolio(openPositions int, exposureUSD float64) {
	r.openPositions.Set(float64(openPositions))
	r.totalExposure.Set(exposureUSD)
}

// Serve runs the /metrics HTTP listener until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", "error", err)
	}
}
