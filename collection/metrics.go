package collection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts collection evaluations. All methods tolerate a nil
// receiver, so callers without a metrics registry pass nil.
type Metrics struct {
	evaluations   prometheus.Counter
	temporaryKeys prometheus.Counter
	sortCalls     prometheus.Counter
}

// NewMetrics registers the collection counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "redstone_collection_evaluations_total",
			Help: "Collection materializations performed",
		}),
		temporaryKeys: factory.NewCounter(prometheus.CounterOpts{
			Name: "redstone_collection_temporary_keys_total",
			Help: "Temporary store keys created during evaluations",
		}),
		sortCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "redstone_collection_sort_calls_total",
			Help: "Store-side SORT invocations",
		}),
	}
}

func (m *Metrics) evaluation() {
	if m != nil {
		m.evaluations.Inc()
	}
}

func (m *Metrics) temporaryKey() {
	if m != nil {
		m.temporaryKeys.Inc()
	}
}

func (m *Metrics) sortCall() {
	if m != nil {
		m.sortCalls.Inc()
	}
}
