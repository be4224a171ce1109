// Package metrics exports operational counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_sync_cycles_total",
			Help: "Synchronization cycles by result (ok, error)",
		},
		[]string{"result"},
	)
	newPullRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_sync_new_pull_requests_total",
			Help: "Pull requests first seen by a synchronization cycle",
		},
	)
	cyclesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_sync_cycles_suppressed_total",
			Help: "Cycles skipped because one was already running for the repository",
		},
	)
	pipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_pipeline_runs_total",
			Help: "Correlation runs by result and final stage",
		},
		[]string{"result", "stage"},
	)
	pipelineCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_pipeline_coalesced_total",
			Help: "Validation requests that joined an in-flight run for the same pull request",
		},
	)
	validationConfidence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prwatch_validation_confidence",
			Help: "Confidence score of the most recent validation",
		},
	)
	notificationsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prwatch_notifications_evicted_total",
			Help: "Notifications dropped for capacity or age",
		},
	)
	webhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prwatch_webhooks_received_total",
			Help: "Verified webhooks by provider",
		},
		[]string{"provider"},
	)
	watchedRepositories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prwatch_watched_repositories",
			Help: "Repositories in the watched set",
		},
	)
)

// SyncCycle records a completed synchronization cycle.
func SyncCycle(ok bool) {
	if ok {
		syncCycles.WithLabelValues("ok").Inc()
		return
	}
	syncCycles.WithLabelValues("error").Inc()
}

// NewPullRequests adds n newly seen pull requests.
func NewPullRequests(n int) { newPullRequests.Add(float64(n)) }

// CycleSuppressed increments the count of skipped overlapping cycles.
func CycleSuppressed() { cyclesSuppressed.Inc() }

// PipelineRun records a finished correlation run. stage is the stage the
// run ended in.
func PipelineRun(ok bool, stage string) {
	result := "ok"
	if !ok {
		result = "error"
	}
	pipelineRuns.WithLabelValues(result, stage).Inc()
}

// PipelineCoalesced increments the count of requests that shared a run.
func PipelineCoalesced() { pipelineCoalesced.Inc() }

// ValidationConfidence records the latest confidence score.
func ValidationConfidence(score float64) { validationConfidence.Set(score) }

// NotificationsEvicted adds n evicted notifications.
func NotificationsEvicted(n int) { notificationsEvicted.Add(float64(n)) }

// WebhookReceived increments the count of verified webhooks.
func WebhookReceived(provider string) { webhooksReceived.WithLabelValues(provider).Inc() }

// WatchedRepositories sets the size of the watched set.
func WatchedRepositories(n int) { watchedRepositories.Set(float64(n)) }
