package notify

import (
	"context"
	"time"

	"github.com/ipafleet/ipa-sentinel/internal/pipeline"
)

// Report summarizes one sentinel run for delivery to external systems.
type Report struct {
	RebuildAll     bool
	ForceRebuild   bool
	DevicesChanged bool
	Results        []pipeline.TaskResult
	Duration       time.Duration
	GeneratedAt    time.Time
}

// Failed returns the names of tasks that did not complete.
func (r Report) Failed() []string {
	var names []string
	for _, result := range r.Results {
		if result.Status == pipeline.StatusFailed {
			names = append(names, result.TaskName)
		}
	}
	return names
}

// Notifier delivers run reports to external systems.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}
