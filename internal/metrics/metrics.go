// Package metrics exposes run-level Prometheus collectors. The
// sentinel is a one-shot process, so metrics are pushed to a
// Pushgateway after a run instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJobName = "ipa_sentinel"

// Metrics wraps Prometheus collectors for ipa-sentinel.
type Metrics struct {
	registry             *prometheus.Registry
	runDurationSeconds   prometheus.Histogram
	tasksPlannedTotal    *prometheus.CounterVec
	taskResultsTotal     *prometheus.CounterVec
	githubAPIErrorsTotal prometheus.Counter
	rateLimitRemaining   prometheus.Gauge
	lastRunGauge         prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ipa_sentinel_run_duration_seconds",
			Help:    "Duration of sentinel runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksPlannedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipa_sentinel_tasks_planned_total",
			Help: "Tasks selected for rebuild by reason.",
		}, []string{"reason"}),
		taskResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipa_sentinel_task_results_total",
			Help: "Build pipeline task outcomes by status.",
		}, []string{"status"}),
		githubAPIErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ipa_sentinel_github_api_errors_total",
			Help: "GitHub API errors observed while checking releases.",
		}),
		rateLimitRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ipa_sentinel_github_rate_limit_remaining",
			Help: "Remaining GitHub API quota at the end of the run.",
		}),
		lastRunGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ipa_sentinel_last_run_timestamp",
			Help: "Unix timestamp of the last completed run.",
		}),
	}

	registry.MustRegister(
		m.runDurationSeconds,
		m.tasksPlannedTotal,
		m.taskResultsTotal,
		m.githubAPIErrorsTotal,
		m.rateLimitRemaining,
		m.lastRunGauge,
	)

	return m
}

// ObserveRunDuration records the duration of a completed run.
func (m *Metrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDurationSeconds.Observe(duration.Seconds())
}

// IncTasksPlanned increments the planned-task counter for a reason.
func (m *Metrics) IncTasksPlanned(reason string) {
	if m == nil {
		return
	}
	m.tasksPlannedTotal.WithLabelValues(reason).Inc()
}

// IncTaskResult increments the task outcome counter for a status.
func (m *Metrics) IncTaskResult(status string) {
	if m == nil {
		return
	}
	m.taskResultsTotal.WithLabelValues(status).Inc()
}

// AddGitHubAPIErrors records release API failures observed during the run.
func (m *Metrics) AddGitHubAPIErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.githubAPIErrorsTotal.Add(float64(n))
}

// SetRateLimitRemaining records the remaining GitHub API quota.
func (m *Metrics) SetRateLimitRemaining(remaining int) {
	if m == nil {
		return
	}
	m.rateLimitRemaining.Set(float64(remaining))
}

// SetLastRunTimestamp sets the last completed run time.
func (m *Metrics) SetLastRunTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastRunGauge.Set(float64(t.Unix()))
}

// Push delivers the collected metrics to a Pushgateway. A nil receiver
// or empty URL is a no-op so metrics stay optional.
func (m *Metrics) Push(gatewayURL string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, pushJobName).Gatherer(m.registry).Push()
}
