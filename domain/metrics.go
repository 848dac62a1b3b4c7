package domain

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomePanic    = "panic"
	outcomeExited   = "exited"
	outcomeRejected = "rejected"
)

type metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	bootstraps  prometheus.Counter
}

// newMetrics registers the domain metrics with reg, or with a new registry if reg is nil.
// Domains that share a registry share its counters.
func newMetrics(reg *prometheus.Registry) (*metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	submissions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "apphost",
		Subsystem: "domain",
		Name:      "submissions_total",
		Help:      "Work submitted to the domain, by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	bootstraps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "apphost",
		Subsystem: "domain",
		Name:      "bootstrap_total",
		Help:      "Completed one-time bootstraps of the domain's application.",
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{registry: reg, submissions: submissions, bootstraps: bootstraps}, nil
}

func register[C prometheus.Collector](reg *prometheus.Registry, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) submitted(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}
