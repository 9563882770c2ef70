// Package jobs contains the background jobs run by the engagement worker.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared by the background jobs.
type Metrics struct {
	StreaksScanned    prometheus.Counter
	StreaksAtRisk     *prometheus.CounterVec
	StreaksBroken     prometheus.Counter
	RemindersSent     prometheus.Counter
	RemindersThrottled prometheus.Counter
	RecoveriesExpired prometheus.Counter
	JobDuration       *prometheus.HistogramVec
}

// NewMetrics registers the job metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StreaksScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "engagement_streaks_scanned_total",
			Help: "Number of streaks examined by the risk scan.",
		}),
		StreaksAtRisk: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engagement_streaks_at_risk_total",
			Help: "Number of at-risk streaks detected, by risk level.",
		}, []string{"risk_level"}),
		StreaksBroken: factory.NewCounter(prometheus.CounterOpts{
			Name: "engagement_streaks_broken_total",
			Help: "Number of streaks marked broken by the scan.",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "engagement_reminders_sent_total",
			Help: "Number of streak reminders handed to the notification scheduler.",
		}),
		RemindersThrottled: factory.NewCounter(prometheus.CounterOpts{
			Name: "engagement_reminders_throttled_total",
			Help: "Number of reminders suppressed by cooldown or rate limit.",
		}),
		RecoveriesExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "engagement_recoveries_expired_total",
			Help: "Number of recovery windows closed as failed.",
		}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engagement_job_duration_seconds",
			Help:    "Background job execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}
