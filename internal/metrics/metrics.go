package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"equitybot/internal/engine"
	"equitybot/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "equitybot"

var states = []string{"IDLE", "RUNNING", "PAUSED", "STOPPED", "ERROR"}

// Registry holds the engine gauges and counters on a private registry.
type Registry struct {
	reg *prometheus.Registry

	Equity        prometheus.Gauge
	Cash          prometheus.Gauge
	Drawdown      prometheus.Gauge
	OpenPositions prometheus.Gauge
	State         *prometheus.GaugeVec
	Cycles        prometheus.Counter
	Trades        *prometheus.CounterVec
	Signals       *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
}

var _ engine.Metrics = (*Registry)(nil)

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equity",
			Help:      "Portfolio equity at the end of the last cycle",
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash",
			Help:      "Available cash",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_ratio",
			Help:      "Drawdown from initial capital (0.0 to 1.0)",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Engine state, 1 for the current one",
		}, []string{"state"}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed trading cycles",
		}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Executed trades by side",
		}, []string{"side"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Detected market signals by type",
		}, []string{"type"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Entry candidates rejected by the risk checks, by reason",
		}, []string{"reason"}),
	}
	r.reg.MustRegister(
		r.Equity, r.Cash, r.Drawdown, r.OpenPositions, r.State,
		r.Cycles, r.Trades, r.Signals, r.Rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) ObserveCycle(state string, equity, cash, drawdown float64, openPositions int) {
	r.Cycles.Inc()
	r.Equity.Set(equity)
	r.Cash.Set(cash)
	r.Drawdown.Set(drawdown)
	r.OpenPositions.Set(float64(openPositions))
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		r.State.WithLabelValues(s).Set(v)
	}
}

func (r *Registry) ObserveTrade(side string)      { r.Trades.WithLabelValues(side).Inc() }
func (r *Registry) ObserveSignal(kind string)     { r.Signals.WithLabelValues(kind).Inc() }
func (r *Registry) ObserveRejection(kind string)  { r.Rejections.WithLabelValues(kind).Inc() }
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Infof("[metrics] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
