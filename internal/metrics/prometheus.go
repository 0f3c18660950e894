package metrics

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"route", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

var NotificationsAttemptedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_notifications_attempted_total",
		Help: "Total number of per-token push attempts by outcome",
	},
	[]string{"provider", "outcome"},
)

var ProviderCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "push_provider_call_duration_seconds",
		Help:    "Duration of push provider calls in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider", "operation"},
)

var ProviderRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_provider_retries_total",
		Help: "Total number of retried push provider calls",
	},
	[]string{"provider", "code"},
)

var TokensDeactivatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "push_tokens_deactivated_total",
		Help: "Total number of device tokens deactivated after invalid-token outcomes",
	},
)

var CampaignsFinalizedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "campaigns_finalized_total",
		Help: "Total number of campaigns reaching a terminal status",
	},
	[]string{"status", "path"},
)

var SchedulerTickDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Duration of scheduled processor ticks in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	},
)

var SchedulerTicksSkippedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_ticks_skipped_total",
		Help: "Total number of ticks skipped by the processor guards",
	},
	[]string{"reason"},
)

var SchedulerTenantFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_tenant_failures_total",
		Help: "Total number of tenant passes that ended in error",
	},
	[]string{"tenant"},
)

func InitAPIMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

func InitDeliveryMetrics() {
	prometheus.MustRegister(NotificationsAttemptedTotal)
	prometheus.MustRegister(ProviderCallDuration)
	prometheus.MustRegister(ProviderRetriesTotal)
	prometheus.MustRegister(TokensDeactivatedTotal)
	prometheus.MustRegister(CampaignsFinalizedTotal)
	prometheus.MustRegister(SchedulerTickDuration)
	prometheus.MustRegister(SchedulerTicksSkippedTotal)
	prometheus.MustRegister(SchedulerTenantFailuresTotal)
}
