package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "bookings_created_total",
			Help:      "Count of appointments booked, by requester kind.",
		},
		[]string{"requester"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "bookings_rejected_total",
			Help:      "Count of rejected booking requests, by reason.",
		},
		[]string{"reason"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "bookings_cancelled_total",
			Help:      "Count of appointments cancelled.",
		},
	)

	accountsDeactivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "accounts_deactivated_total",
			Help:      "Count of patient accounts deactivated for repeated cancellations.",
		},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "reminders_sent_total",
			Help:      "Count of reminder dispatches, by lead hours and outcome.",
		},
		[]string{"lead_hours", "status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citago",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests, by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingRejected, bookingCancelled,
			accountsDeactivated, remindersSent, httpRequests,
		)
	})
}

func IncBookingCreated(requester string) {
	bookingCreated.WithLabelValues(requester).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncAccountDeactivated() {
	accountsDeactivated.Inc()
}

func IncReminderSent(leadHours string, status string) {
	remindersSent.WithLabelValues(leadHours, status).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
