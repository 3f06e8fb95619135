package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_alerts_fired_total",
		Help: "Total number of alerts admitted and persisted",
	}, []string{"severity", "type"})

	alertsThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_alerts_throttled_total",
		Help: "Total number of alerts denied by the throttle",
	}, []string{"severity", "type"})

	alertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_alerts_suppressed_total",
		Help: "Total number of alerts denied by an active suppression",
	}, []string{"severity", "type"})

	alertsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_alerts_deduplicated_total",
		Help: "Total number of alerts skipped as duplicates of an unresolved alert",
	})

	alertsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_alerts_dropped_total",
		Help: "Total number of alerts dropped on persistence failure",
	})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_deliveries_total",
		Help: "Total number of channel delivery attempts",
	}, []string{"channel", "status"})

	deliveryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_delivery_retries_total",
		Help: "Total number of whole-alert delivery retries scheduled",
	})

	ruleExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_rule_executions_total",
		Help: "Total number of rule executions",
	}, []string{"rule", "outcome"}) // outcome: triggered, not_met, skipped, error

	ruleExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitor_rule_execution_duration_seconds",
		Help:    "Duration of rule executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"rule"})

	activeRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_rules",
		Help: "Number of rules with an armed timer",
	})

	workerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_worker_runs_total",
		Help: "Total number of worker runs",
	}, []string{"worker"})

	workerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_worker_errors_total",
		Help: "Total number of worker errors",
	}, []string{"worker"})

	correlationsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_correlations_matched_total",
		Help: "Total number of correlation pattern matches",
	}, []string{"pattern", "action"})
)

// RecordWorkerRun records one run of a background worker.
func RecordWorkerRun(workerName string) {
	workerRunsTotal.WithLabelValues(workerName).Inc()
}

// RecordWorkerError records one background worker failure.
func RecordWorkerError(workerName string) {
	workerErrors.WithLabelValues(workerName).Inc()
}
