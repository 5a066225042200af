package planner

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/cache"
	"github.com/ipafleet/ipa-sentinel/internal/config"
)

// Plan is the run's rebuild intent: which tasks to process and why. The
// planner only decides; the pipeline performs the builds.
type Plan struct {
	RebuildAll bool
	Tasks      []string
	Decisions  map[string]Decision
}

// Includes reports whether a task is in the rebuild set.
func (p Plan) Includes(taskName string) bool {
	for _, name := range p.Tasks {
		if name == taskName {
			return true
		}
	}
	return false
}

// Planner combines the global rebuild-all signal with per-task checks.
type Planner struct {
	logger  zerolog.Logger
	checker *Checker
}

// New constructs a Planner around the given checker.
func New(logger zerolog.Logger, checker *Checker) *Planner {
	return &Planner{logger: logger, checker: checker}
}

// Plan evaluates every task once, sequentially, and returns the sorted
// rebuild set. Either trigger flag enrolls every task; an explicit force
// takes precedence over a roster change when labeling the decisions.
// Release-tracked tasks are still checked so their post-build cache
// entries can be recorded. The returned error is fatal for the run
// (rate limiting).
func (p *Planner) Plan(ctx context.Context, tasks []config.Task, releaseCache cache.ReleaseCache, devicesChanged, forceRebuild bool) (Plan, error) {
	rebuildAll := devicesChanged || forceRebuild
	var forceReason Reason
	switch {
	case forceRebuild:
		forceReason = ReasonForceRebuild
	case devicesChanged:
		forceReason = ReasonDeviceChanges
	}

	plan := Plan{
		RebuildAll: rebuildAll,
		Decisions:  make(map[string]Decision, len(tasks)),
	}

	for _, task := range tasks {
		if task.TaskName == "" {
			continue
		}

		decision, err := p.checker.Check(ctx, task, releaseCache, forceReason)
		if err != nil {
			return Plan{}, err
		}
		if rebuildAll && !decision.ShouldRebuild {
			// Membership is already decided globally; the check only ran
			// to resolve the download URL and version metadata.
			decision.ShouldRebuild = true
		}
		plan.Decisions[task.TaskName] = decision

		if decision.ShouldRebuild {
			plan.Tasks = append(plan.Tasks, task.TaskName)
		}
	}

	sort.Strings(plan.Tasks)

	p.logger.Info().
		Bool("rebuild_all", plan.RebuildAll).
		Strs("rebuild_tasks", plan.Tasks).
		Msg("change detection complete")

	return plan, nil
}
