package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncCycle(t *testing.T) {
	okBefore := testutil.ToFloat64(syncCycles.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(syncCycles.WithLabelValues("error"))

	SyncCycle(true)
	SyncCycle(false)
	SyncCycle(false)

	if got := testutil.ToFloat64(syncCycles.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("ok cycles delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(syncCycles.WithLabelValues("error")) - errBefore; got != 2 {
		t.Errorf("error cycles delta = %v, want 2", got)
	}
}

func TestPipelineRun(t *testing.T) {
	before := testutil.ToFloat64(pipelineRuns.WithLabelValues("error", "fetch_ticket"))

	PipelineRun(false, "fetch_ticket")

	if got := testutil.ToFloat64(pipelineRuns.WithLabelValues("error", "fetch_ticket")) - before; got != 1 {
		t.Errorf("pipeline runs delta = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	newBefore := testutil.ToFloat64(newPullRequests)
	suppressedBefore := testutil.ToFloat64(cyclesSuppressed)
	coalescedBefore := testutil.ToFloat64(pipelineCoalesced)
	evictedBefore := testutil.ToFloat64(notificationsEvicted)
	hooksBefore := testutil.ToFloat64(webhooksReceived.WithLabelValues("gitlab"))

	NewPullRequests(3)
	CycleSuppressed()
	PipelineCoalesced()
	NotificationsEvicted(2)
	WebhookReceived("gitlab")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"new pull requests", testutil.ToFloat64(newPullRequests) - newBefore, 3},
		{"suppressed", testutil.ToFloat64(cyclesSuppressed) - suppressedBefore, 1},
		{"coalesced", testutil.ToFloat64(pipelineCoalesced) - coalescedBefore, 1},
		{"evicted", testutil.ToFloat64(notificationsEvicted) - evictedBefore, 2},
		{"webhooks", testutil.ToFloat64(webhooksReceived.WithLabelValues("gitlab")) - hooksBefore, 1},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s delta = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestGauges(t *testing.T) {
	ValidationConfidence(0.42)
	if got := testutil.ToFloat64(validationConfidence); got != 0.42 {
		t.Errorf("validation confidence = %v, want 0.42", got)
	}

	WatchedRepositories(5)
	if got := testutil.ToFloat64(watchedRepositories); got != 5 {
		t.Errorf("watched repositories = %v, want 5", got)
	}
}
