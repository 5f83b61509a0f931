// Package metrics exports ledger outcomes to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/ledger"
)

const namespace = "marketplace"

// Recorder implements interfaces.Metrics on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	settled    prometheus.Counter
	withdrawn  prometheus.Counter
}

// New registers the marketplace collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and result kind.",
		}, []string{"operation", "result"}),
		settled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_volume_total",
			Help:      "Payments credited to sellers, in the smallest currency unit.",
		}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawn_volume_total",
			Help:      "Proceeds paid out to sellers, in the smallest currency unit.",
		}),
	}
	r.registry.MustRegister(
		r.operations,
		r.settled,
		r.withdrawn,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveOperation(operation string, err error) {
	r.operations.WithLabelValues(operation, ledger.KindName(err)).Inc()
}

// Volumes are float counters; very large sums lose precision in the export
// but never in the ledger.
func (r *Recorder) ObserveSettled(amount decimal.Decimal) {
	r.settled.Add(amount.InexactFloat64())
}

func (r *Recorder) ObserveWithdrawn(amount decimal.Decimal) {
	r.withdrawn.Add(amount.InexactFloat64())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

var _ interfaces.Metrics = (*Recorder)(nil)
