// Package metrics exposes the tracking pipeline's Prometheus instruments.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Reject reason labels kept low-cardinality on purpose.
const (
	RejectReasonExpired     = "expired"
	RejectReasonDailyCap    = "daily_cap"
	RejectReasonTotalCap    = "total_cap"
	RejectReasonAntiFraud   = "anti_fraud"
	RejectReasonRiskScore   = "risk_score"
	RejectReasonDuplicate   = "duplicate"
	RejectReasonValidation  = "validation"
	FallbackSourceGeo       = "geo"
	FallbackSourceFraud     = "fraud"
	FallbackSourceSequence  = "sequence"
)

// Metrics captures click pipeline health signals. A nil receiver is inert so
// wiring stays optional in tests.
type Metrics struct {
	clicksAccepted  prometheus.Counter
	clicksRejected  *prometheus.CounterVec
	conversions     *prometheus.CounterVec
	upstreamFallbks *prometheus.CounterVec
	trackDuration   prometheus.Histogram
}

type Config struct {
	ServiceName string
	Environment string
}

// New registers the pipeline instruments on registerer.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "clickpipe"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		clicksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "clickpipe_clicks_accepted_total",
			Help:        "Clicks accepted and persisted.",
			ConstLabels: constLabels,
		}),
		clicksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "clickpipe_clicks_rejected_total",
			Help:        "Clicks rejected by gate, by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "clickpipe_conversions_total",
			Help:        "Conversion postbacks by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		upstreamFallbks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "clickpipe_upstream_fallbacks_total",
			Help:        "Degraded-path activations by upstream dependency.",
			ConstLabels: constLabels,
		}, []string{"upstream"}),
		trackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "clickpipe_track_duration_seconds",
			Help:        "End-to-end tracking request latency.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.clicksAccepted,
		m.clicksRejected,
		m.conversions,
		m.upstreamFallbks,
		m.trackDuration,
	)
	return m
}

func (m *Metrics) ClickAccepted() {
	if m == nil {
		return
	}
	m.clicksAccepted.Inc()
}

func (m *Metrics) ClickRejected(reason string) {
	if m == nil {
		return
	}
	m.clicksRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Conversion(outcome string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) UpstreamFallback(upstream string) {
	if m == nil {
		return
	}
	m.upstreamFallbks.WithLabelValues(upstream).Inc()
}

func (m *Metrics) ObserveTrackDuration(seconds float64) {
	if m == nil {
		return
	}
	m.trackDuration.Observe(seconds)
}
