// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision results used as metric label values.
const (
	ResultAllowed         = "allowed"
	ResultDenied          = "denied"
	ResultUnauthenticated = "unauthenticated"
	ResultOK              = "ok"
	ResultError           = "error"
)

// Metrics holds the authorization metrics.
//
// Labels come from fixed value sets only. Permission keys and modules are
// taken from request paths and never become label values.
type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	LookupsTotal     *prometheus.CounterVec
	LookupDuration   prometheus.Histogram
	GrantSourceReady prometheus.Gauge
}

// NewMetrics creates the authorization metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclkey_decisions_total",
				Help: "Total number of authorization decisions by result",
			},
			[]string{"result"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aclkey_grant_lookups_total",
				Help: "Total number of grant store lookups by result",
			},
			[]string{"result"},
		),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aclkey_grant_lookup_duration_seconds",
			Help:    "Histogram of grant store lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		GrantSourceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aclkey_grant_source_ready",
			Help: "1 if the last readiness check of the grant source passed, else 0",
		}),
	}

	reg.MustRegister(m.DecisionsTotal, m.LookupsTotal, m.LookupDuration, m.GrantSourceReady)

	// Pre-create result series so dashboards see zeros before traffic.
	for _, result := range []string{ResultAllowed, ResultDenied, ResultUnauthenticated} {
		m.DecisionsTotal.WithLabelValues(result)
	}
	return m
}

// RecordDecision counts one authorization decision.
func (m *Metrics) RecordDecision(result string) {
	m.DecisionsTotal.WithLabelValues(result).Inc()
}

// ObserveLookup records the duration and outcome of a grant lookup.
func (m *Metrics) ObserveLookup(duration time.Duration, err error) {
	m.LookupDuration.Observe(duration.Seconds())
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) setReady(ready bool) {
	if ready {
		m.GrantSourceReady.Set(1)
		return
	}
	m.GrantSourceReady.Set(0)
}
