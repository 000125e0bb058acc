package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact directory.
// Tracks mutations, duplicate-phone detections and store latency.
type Metrics struct {
	ContactsCreated   prometheus.Counter
	ContactsMutated   *prometheus.CounterVec
	DuplicatePhones   prometheus.Counter
	StoreCallDuration *prometheus.HistogramVec
}

// New creates directory metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContactsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_contacts_created_total",
			Help: "Total number of contacts added to the directory",
		}),
		ContactsMutated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_contacts_mutated_total",
			Help: "Total number of contact records changed by batch commits, by operation",
		}, []string{"op"}),
		DuplicatePhones: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_contacts_duplicate_phone_lookups_total",
			Help: "Lookups that matched more than one record for a phone number",
		}),
		StoreCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_directory_store_duration_seconds",
			Help:    "Duration of directory store calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// IncrementContactsCreated records a successful insert.
func (m *Metrics) IncrementContactsCreated() {
	if m == nil {
		return
	}
	m.ContactsCreated.Inc()
}

// AddMutated records n records changed by op ("update_roles" or "delete").
func (m *Metrics) AddMutated(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ContactsMutated.WithLabelValues(op).Add(float64(n))
}

// IncrementDuplicatePhones records a lookup that found duplicate records.
func (m *Metrics) IncrementDuplicatePhones() {
	if m == nil {
		return
	}
	m.DuplicatePhones.Inc()
}

// ObserveStoreCall records the duration of a store call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStoreCall(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
