// Package prom counts castore.Hooks events with Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/castore"
)

// Options configure metric naming.
type Options struct {
	Namespace string // "" => "castore"
	Subsystem string
}

type Hooks struct {
	batches         *prometheus.CounterVec
	batchOps        *prometheus.CounterVec
	inits           *prometheus.CounterVec
	initItems       *prometheus.GaugeVec
	initDeleted     *prometheus.GaugeVec
	upsertConflicts prometheus.Counter
	upsertStale     prometheus.Counter
	probeFailures   prometheus.Counter
}

var _ castore.Hooks = (*Hooks)(nil)

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "castore"
	}
	sub := opts.Subsystem

	h := &Hooks{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "init_batches_total",
			Help: "Init transactions committed",
		}, []string{"prefix"}),
		batchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "init_ops_total",
			Help: "Operations committed by Init transactions",
		}, []string{"prefix"}),
		inits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "init_completed_total",
			Help: "Completed Init calls",
		}, []string{"prefix"}),
		initItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "init_items",
			Help: "Items written by the last completed Init",
		}, []string{"prefix"}),
		initDeleted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "init_deleted_keys",
			Help: "Stale keys deleted by the last completed Init",
		}, []string{"prefix"}),
		upsertConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "upsert_conflicts_total",
			Help: "Upsert writes rejected by a concurrent modification",
		}),
		upsertStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "upsert_stale_total",
			Help: "Upserts skipped because the stored version was the same or newer",
		}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "probe_failures_total",
			Help: "Availability probes that failed",
		}),
	}

	for _, c := range []prometheus.Collector{
		h.batches, h.batchOps, h.inits, h.initItems, h.initDeleted,
		h.upsertConflicts, h.upsertStale, h.probeFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) BatchCommitted(prefix string, _, _, ops int) {
	h.batches.WithLabelValues(prefix).Inc()
	h.batchOps.WithLabelValues(prefix).Add(float64(ops))
}

func (h *Hooks) InitCompleted(prefix string, items, deleted, _ int) {
	h.inits.WithLabelValues(prefix).Inc()
	h.initItems.WithLabelValues(prefix).Set(float64(items))
	h.initDeleted.WithLabelValues(prefix).Set(float64(deleted))
}

// Keys are not used as labels; their cardinality is unbounded.
func (h *Hooks) UpsertConflict(string, int)   { h.upsertConflicts.Inc() }
func (h *Hooks) UpsertStale(string, int, int) { h.upsertStale.Inc() }
func (h *Hooks) ProbeFailed(error)            { h.probeFailures.Inc() }
