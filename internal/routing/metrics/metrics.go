package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts inbound traffic by sender class.
type Metrics struct {
	Inbound                *prometheus.CounterVec
	EscalationsNoReviewers prometheus.Counter
	ConfirmationsSent      prometheus.Counter
	RouteDuration          prometheus.Histogram
}

// New creates routing metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_inbound_messages_total",
			Help: "Inbound messages by sender class and routing result",
		}, []string{"class", "result"}),
		EscalationsNoReviewers: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_escalations_without_reviewers_total",
			Help: "Escalations that found no ADMIN contact to notify",
		}),
		ConfirmationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_confirmations_sent_total",
			Help: "Confirmations delivered back to senders",
		}),
		RouteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_route_duration_seconds",
			Help:    "End-to-end routing time including fan-out",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveInbound(class, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Inbound.WithLabelValues(class, result).Inc()
	m.RouteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEscalationsNoReviewers() {
	if m == nil {
		return
	}
	m.EscalationsNoReviewers.Inc()
}

func (m *Metrics) IncrementConfirmationsSent() {
	if m == nil {
		return
	}
	m.ConfirmationsSent.Inc()
}
