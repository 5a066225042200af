// Package planner decides which signing tasks need rebuilding, combining
// the global roster-change signal with per-task release version checks.
package planner

import (
	"github.com/ipafleet/ipa-sentinel/internal/cache"
)

// Reason explains a rebuild decision.
type Reason string

const (
	ReasonDeviceChanges   Reason = "device_changes"
	ReasonForceRebuild    Reason = "force_rebuild"
	ReasonVersionChanged  Reason = "version_changed"
	ReasonRepublished     Reason = "republished"
	ReasonFirstRun        Reason = "first_run"
	ReasonDirectURL       Reason = "direct_url"
	ReasonInvalidRepoURL  Reason = "invalid_repo_url"
	ReasonNoReleases      Reason = "no_releases"
	ReasonNoMatchingAsset Reason = "no_matching_asset"
	ReasonAPIError        Reason = "api_error"
	ReasonNoSource        Reason = "no_source"
	ReasonUpToDate        Reason = "up_to_date"
)

// Decision is the per-task outcome of a version check. It is computed
// fresh every run and never persisted; only VersionToCache survives, and
// only after the task's artifact has been delivered.
type Decision struct {
	TaskName      string
	ShouldRebuild bool
	Reason        Reason

	// DownloadURL is the resolved artifact source, when one exists.
	DownloadURL string

	// VersionToCache is the release cache entry to record after a
	// successful build. Nil for direct-URL tasks and up-to-date tasks.
	VersionToCache *cache.Entry

	// Err carries diagnostic detail for api_error decisions. It is not
	// fatal: the task is rebuilt and the error retried naturally on the
	// next invocation.
	Err error
}
