package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymslot",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymslot",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gymslot",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts that lost the race for a slot.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, bookingConflicts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking records a book/cancel attempt and its outcome.
func IncBooking(operation, outcome string) {
	bookings.WithLabelValues(operation, outcome).Inc()
}

// IncConflict records a lost slot race.
func IncConflict() {
	bookingConflicts.Inc()
}
