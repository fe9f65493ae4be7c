package edgecas

import (
	"errors"

	"github.com/agenthands/edgecas/pkg/background"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	ingests     *prometheus.CounterVec
	retrievals  *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec
	tasks       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecas",
			Name:      "ingests_total",
			Help:      "Ingest requests by outcome.",
		}, []string{"outcome"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecas",
			Name:      "retrievals_total",
			Help:      "Retrieve requests by the layer that answered.",
		}, []string{"source"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecas",
			Name:      "edge_cache_errors_total",
			Help:      "Edge cache failures by operation. Never surfaced to clients.",
		}, []string{"op"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecas",
			Name:      "background_tasks_total",
			Help:      "Background tasks by name and outcome.",
		}, []string{"task", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ingests, m.retrievals, m.cacheErrors, m.tasks)
	}
	return m
}

func (m *metrics) ingest(outcome string) { m.ingests.WithLabelValues(outcome).Inc() }
func (m *metrics) retrieve(source string) { m.retrievals.WithLabelValues(source).Inc() }
func (m *metrics) cacheError(op string) { m.cacheErrors.WithLabelValues(op).Inc() }

func (m *metrics) observeTask(name string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, background.ErrQueueFull):
		outcome = "dropped"
	case err != nil:
		outcome = "failed"
	}
	m.tasks.WithLabelValues(name, outcome).Inc()
}
