package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	JobRuns      *prometheus.CounterVec
	JobFailures  *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	JobLockMiss  *prometheus.CounterVec
	JobItemError *prometheus.CounterVec

	CheckinsCreated prometheus.Counter
	CheckinsExpired prometheus.Counter
	RemindersSent   prometheus.Counter

	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	StatusUpdates       *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewFor(prometheus.DefaultRegisterer)
}

// NewFor registers on the given registerer; tests pass a fresh registry so
// repeated construction never collides.
func NewFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_job_runs_total",
			Help: "Scheduled job executions, by job name",
		}, []string{"job"}),
		JobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_job_failures_total",
			Help: "Scheduled job executions that aborted before completing",
		}, []string{"job"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esupervision_job_duration_seconds",
			Help:    "Wall-clock duration of scheduled job runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"job"}),
		JobLockMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_job_lock_misses_total",
			Help: "Job runs skipped because another instance held the lock",
		}, []string{"job"}),
		JobItemError: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_job_item_errors_total",
			Help: "Per-item failures caught and skipped inside job batches",
		}, []string{"job"}),
		CheckinsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "esupervision_checkins_created_total",
			Help: "Check-ins created by the creation worker or manual trigger",
		}),
		CheckinsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "esupervision_checkins_expired_total",
			Help: "Check-ins moved to EXPIRED by the expiry worker",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "esupervision_reminders_sent_total",
			Help: "Reminder notifications produced by the reminder worker",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_notifications_sent_total",
			Help: "Notifications accepted by the delivery provider, by channel",
		}, []string{"channel"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_notifications_failed_total",
			Help: "Notification sends rejected or errored, by channel",
		}, []string{"channel"}),
		StatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esupervision_notification_status_updates_total",
			Help: "Provider delivery-status transitions applied locally, by new status",
		}, []string{"status"}),
	}
}
