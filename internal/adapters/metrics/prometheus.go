package metrics

// prometheus.go — contadores de la ejecución en un registry propio.
//
// El backtester es un proceso batch: no expone /metrics, vuelca el registry
// al final en formato textfile para el node_exporter.

import (
	"fmt"

	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stock_backtest"

// Prometheus implementa ports.Metrics.
type Prometheus struct {
	registry       *prometheus.Registry
	ticks          *prometheus.CounterVec
	trades         *prometheus.CounterVec
	halts          prometheus.Counter
	extremesErrors prometheus.Counter
}

// NewPrometheus registra los contadores con las labels constantes dadas
// (p.ej. run_id).
func NewPrometheus(labels prometheus.Labels) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "ticks_total",
			Help:        "Session ticks processed, by phase.",
			ConstLabels: labels,
		}, []string{"phase"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "trades_total",
			Help:        "Ledger mutations across all parameter sets, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		halts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "param_sets_halted_total",
			Help:        "Parameter sets stopped by the profit floor or ceiling.",
			ConstLabels: labels,
		}),
		extremesErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "extremes_lookup_errors_total",
			Help:        "Historical extremes lookups that failed open.",
			ConstLabels: labels,
		}),
	}
	p.registry.MustRegister(p.ticks, p.trades, p.halts, p.extremesErrors)
	return p
}

func (p *Prometheus) TickProcessed(blackout bool) {
	phase := "market"
	if blackout {
		phase = "blackout"
	}
	p.ticks.WithLabelValues(phase).Inc()
}

func (p *Prometheus) TradeExecuted(kind domain.TxKind) {
	p.trades.WithLabelValues(string(kind)).Inc()
}

func (p *Prometheus) ParamSetHalted() { p.halts.Inc() }

func (p *Prometheus) ExtremesLookupFailed() { p.extremesErrors.Inc() }

// Registry expone el registry (tests y exportadores).
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// WriteTextfile vuelca los contadores al archivo dado, de forma atómica.
func (p *Prometheus) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("metrics.WriteTextfile: %w", err)
	}
	return nil
}
