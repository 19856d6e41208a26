package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	denialMetricName = "ratelimits"
	denialMetricHelp = "Ratelimited commands"
)

// PrometheusSink counts denials in a counter vector labelled by key.
type PrometheusSink struct {
	counter *prometheus.CounterVec
}

// NewPrometheusSink registers the denial counter with reg. If an identical
// collector is already registered it is reused.
func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      denialMetricName,
		Help:      denialMetricHelp,
	}, []string{"key"})

	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	return &PrometheusSink{counter: counter}, nil
}

func (p *PrometheusSink) RecordDenial(key string) {
	p.counter.WithLabelValues(key).Inc()
}

// Collector exposes the underlying counter, mostly for tests.
func (p *PrometheusSink) Collector() *prometheus.CounterVec {
	return p.counter
}
