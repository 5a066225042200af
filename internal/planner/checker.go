package planner

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/cache"
	"github.com/ipafleet/ipa-sentinel/internal/config"
	"github.com/ipafleet/ipa-sentinel/internal/github"
)

// ReleaseResolver fetches the release a task should track. Satisfied by
// *github.Client; faked in tests.
type ReleaseResolver interface {
	ResolveRelease(ctx context.Context, owner, repo string, usePrerelease bool) (*github.Release, error)
}

// Checker evaluates a single task against the release cache and the live
// upstream release. Each task is fetched exactly once per run.
type Checker struct {
	logger   zerolog.Logger
	resolver ReleaseResolver
}

// NewChecker constructs a Checker.
func NewChecker(logger zerolog.Logger, resolver ReleaseResolver) *Checker {
	return &Checker{logger: logger, resolver: resolver}
}

// Check produces the rebuild decision for one task. A non-empty
// forceReason short-circuits the cache comparison: the task rebuilds with
// that reason, and the check only runs to resolve the download URL and
// version metadata. The returned error is non-nil only for conditions
// fatal to the whole run (rate limit exhaustion); ordinary per-task
// failures degrade to a rebuild decision instead, biasing toward
// rebuilding over skipping.
func (c *Checker) Check(ctx context.Context, task config.Task, releaseCache cache.ReleaseCache, forceReason Reason) (Decision, error) {
	logger := c.logger.With().Str("task", task.TaskName).Logger()

	if task.DirectURL() {
		logger.Info().Msg("direct URL task, always rebuilt")
		return Decision{
			TaskName:      task.TaskName,
			ShouldRebuild: true,
			Reason:        ReasonDirectURL,
			DownloadURL:   task.IPAURL,
		}, nil
	}

	if !task.ReleaseTracked() {
		logger.Warn().Msg("no IPA source defined, rebuilding anyway")
		return Decision{
			TaskName:      task.TaskName,
			ShouldRebuild: true,
			Reason:        ReasonNoSource,
		}, nil
	}

	owner, repo, err := github.ParseRepoURL(task.RepoURL)
	if err != nil {
		logger.Warn().Err(err).Msg("unable to identify artifact source, rebuilding")
		return Decision{
			TaskName:      task.TaskName,
			ShouldRebuild: true,
			Reason:        ReasonInvalidRepoURL,
		}, nil
	}

	release, err := c.resolver.ResolveRelease(ctx, owner, repo, task.UsePrerelease)
	if err != nil {
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return Decision{}, rateErr
		}
		logger.Error().Err(err).Msg("release check failed, rebuilding")
		return Decision{
			TaskName:      task.TaskName,
			ShouldRebuild: true,
			Reason:        ReasonAPIError,
			Err:           err,
		}, nil
	}
	if release == nil {
		logger.Warn().Str("repo", owner+"/"+repo).Msg("no releases found")
		return Decision{
			TaskName:      task.TaskName,
			ShouldRebuild: true,
			Reason:        ReasonNoReleases,
		}, nil
	}

	matched := github.MatchAssets(release.Assets, task.ReleaseGlob)
	if len(matched) == 0 {
		logger.Warn().
			Str("tag", release.TagName).
			Str("glob", assetGlob(task)).
			Msg("no matching release asset, nothing to rebuild")
		return Decision{
			TaskName: task.TaskName,
			Reason:   ReasonNoMatchingAsset,
		}, nil
	}
	if len(matched) > 1 {
		names := make([]string, len(matched))
		for i, asset := range matched {
			names[i] = asset.Name
		}
		logger.Warn().
			Strs("matches", names).
			Str("selected", matched[0].Name).
			Msg("multiple release assets match, using the first")
	}
	asset := matched[0]

	entry := &cache.Entry{
		Version:     release.TagName,
		PublishedAt: release.PublishedAt,
		DownloadURL: asset.BrowserDownloadURL,
		AssetID:     asset.ID,
	}

	if forceReason != "" {
		return Decision{
			TaskName:       task.TaskName,
			ShouldRebuild:  true,
			Reason:         forceReason,
			DownloadURL:    asset.BrowserDownloadURL,
			VersionToCache: entry,
		}, nil
	}

	cached, ok := releaseCache.Get(task.TaskName)
	switch {
	case !ok || cached.Version == "":
		logger.Info().Str("tag", release.TagName).Msg("first run, no cached version")
		return Decision{
			TaskName:       task.TaskName,
			ShouldRebuild:  true,
			Reason:         ReasonFirstRun,
			DownloadURL:    asset.BrowserDownloadURL,
			VersionToCache: entry,
		}, nil
	case cached.Version != release.TagName:
		logger.Info().
			Str("cached", cached.Version).
			Str("current", release.TagName).
			Msg("version changed")
		return Decision{
			TaskName:       task.TaskName,
			ShouldRebuild:  true,
			Reason:         ReasonVersionChanged,
			DownloadURL:    asset.BrowserDownloadURL,
			VersionToCache: entry,
		}, nil
	case !cached.PublishedAt.Equal(release.PublishedAt):
		logger.Info().Str("tag", release.TagName).Msg("release republished")
		return Decision{
			TaskName:       task.TaskName,
			ShouldRebuild:  true,
			Reason:         ReasonRepublished,
			DownloadURL:    asset.BrowserDownloadURL,
			VersionToCache: entry,
		}, nil
	}

	logger.Info().Str("tag", release.TagName).Msg("up to date")
	return Decision{
		TaskName: task.TaskName,
		Reason:   ReasonUpToDate,
	}, nil
}

func assetGlob(task config.Task) string {
	if task.ReleaseGlob != "" {
		return task.ReleaseGlob
	}
	return github.DefaultAssetGlob
}
