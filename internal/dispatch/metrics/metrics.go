package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks fan-out sends.
type Metrics struct {
	Sends            *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	FanoutSize       prometheus.Histogram
}

// New creates dispatcher metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_sms_sends_total",
			Help: "Individual SMS sends by outcome",
		}, []string{"outcome"}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_dispatch_duration_seconds",
			Help:    "Time for a fan-out to settle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FanoutSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_dispatch_recipients",
			Help:    "Recipients per fan-out",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Send outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

func (m *Metrics) ObserveSend(outcome string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDispatch(recipients int, start time.Time) {
	if m == nil {
		return
	}
	m.FanoutSize.Observe(float64(recipients))
	m.DispatchDuration.Observe(time.Since(start).Seconds())
}
