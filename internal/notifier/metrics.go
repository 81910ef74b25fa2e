package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routined_notifications_scheduled_total",
			Help: "Notification requests scheduled or re-scheduled",
		},
	)

	NotificationsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routined_notifications_canceled_total",
			Help: "Notification requests canceled",
		},
	)

	NotificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routined_notifications_shown_total",
			Help: "Notifications handed to a presenter",
		},
		[]string{"source"}, // sweep, immediate, push
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routined_notifications_failed_total",
			Help: "Notifications the presenter rejected",
		},
		[]string{"source"},
	)

	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routined_sweeps_total",
			Help: "Sweeps of the request store by trigger",
		},
		[]string{"trigger"},
	)

	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routined_pending_requests",
			Help: "Requests waiting in the store after the last sweep",
		},
	)
)
