package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the case lifecycle.
type Metrics struct {
	CasesSubmitted     prometheus.Counter
	CasesVetted        *prometheus.CounterVec
	CasesReopened      prometheus.Counter
	SuperuserOverrides prometheus.Counter
	SLABreachedPending prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CasesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vettinghub_cases_submitted_total",
			Help: "Total number of cases submitted",
		}),
		CasesVetted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vettinghub_cases_vetted_total",
			Help: "Total number of vetting decisions recorded, by decision",
		}, []string{"decision"}),
		CasesReopened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vettinghub_cases_reopened_total",
			Help: "Total number of cases reopened after a decision",
		}),
		SuperuserOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vettinghub_superuser_overrides_total",
			Help: "Total number of writes performed with an unscoped superuser token",
		}),
		SLABreachedPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vettinghub_sla_breached_pending",
			Help: "Open cases past their turnaround window, as of the last dashboard read",
		}),
	}
}
