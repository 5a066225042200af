package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.ObserveRunDuration(2 * time.Second)
	m.IncTasksPlanned("version_changed")
	m.IncTasksPlanned("version_changed")
	m.IncTaskResult("signed")
	m.AddGitHubAPIErrors(1)
	m.SetRateLimitRemaining(4200)
	m.SetLastRunTimestamp(time.Unix(100, 0))

	if got := testutil.ToFloat64(m.tasksPlannedTotal.WithLabelValues("version_changed")); got != 2 {
		t.Fatalf("expected planned tasks 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.taskResultsTotal.WithLabelValues("signed")); got != 1 {
		t.Fatalf("expected signed results 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.githubAPIErrorsTotal); got != 1 {
		t.Fatalf("expected api errors 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimitRemaining); got != 4200 {
		t.Fatalf("expected rate limit remaining 4200, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastRunGauge); got != 100 {
		t.Fatalf("expected last run 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.runDurationSeconds); count == 0 {
		t.Fatalf("expected run duration histogram to be collected")
	}
}

func TestMetricsPush(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.Contains(r.URL.Path, pushJobName) {
			t.Errorf("push path should carry the job name, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New()
	m.IncTaskResult("signed")

	if err := m.Push(server.URL); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got == 0 {
		t.Fatal("expected at least one push request")
	}
}

func TestMetricsPushDisabled(t *testing.T) {
	m := New()
	if err := m.Push(""); err != nil {
		t.Fatalf("empty gateway URL should be a no-op, got %v", err)
	}

	var nilMetrics *Metrics
	if err := nilMetrics.Push("http://localhost:9091"); err != nil {
		t.Fatalf("nil metrics should be a no-op, got %v", err)
	}
}
