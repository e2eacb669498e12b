package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the access-control path
type Metrics struct {
	AuthFailuresTotal     *prometheus.CounterVec
	AccessDenialsTotal    *prometheus.CounterVec
	QuotaDenialsTotal     *prometheus.CounterVec
	RateLimitDenialsTotal *prometheus.CounterVec
	RateWindowsCached     prometheus.Gauge
}

// NewMetrics creates and registers the metrics on the given registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhall_auth_failures_total",
				Help: "Total number of failed authentication attempts",
			},
			[]string{"reason"},
		),
		AccessDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhall_access_denials_total",
				Help: "Total number of authorization denials",
			},
			[]string{"reason"},
		),
		QuotaDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhall_quota_denials_total",
				Help: "Total number of quota denials",
			},
			[]string{"resource"},
		),
		RateLimitDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhall_rate_limit_denials_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"identifier_kind"},
		),
		RateWindowsCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewhall_rate_windows_cached",
				Help: "Number of rate limit windows in the in-process cache",
			},
		),
	}

	registry.MustRegister(
		m.AuthFailuresTotal,
		m.AccessDenialsTotal,
		m.QuotaDenialsTotal,
		m.RateLimitDenialsTotal,
		m.RateWindowsCached,
	)

	return m
}
