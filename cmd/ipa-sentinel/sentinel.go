package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/cache"
	"github.com/ipafleet/ipa-sentinel/internal/config"
	"github.com/ipafleet/ipa-sentinel/internal/device"
	"github.com/ipafleet/ipa-sentinel/internal/exitcode"
	"github.com/ipafleet/ipa-sentinel/internal/github"
	"github.com/ipafleet/ipa-sentinel/internal/logging"
	"github.com/ipafleet/ipa-sentinel/internal/planner"
)

// detection bundles everything the check stage produces for reuse by
// the run stage.
type detection struct {
	cfg             config.Config
	logger          zerolog.Logger
	tasks           []config.Task
	plan            planner.Plan
	releaseCache    cache.ReleaseCache
	cacheStore      cache.Store
	client          *github.Client
	devicesChanged  bool
	currentSnapshot *device.Snapshot
	forceRebuild    bool
}

// detect runs configuration loading, device diffing, and release
// checking. Every error it returns is an exitError with the proper
// process exit code.
func detect(ctx context.Context) (*detection, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, exitWith(exitcode.ConfigError, err)
	}
	if flagConfig != "" {
		cfg.TasksFile = flagConfig
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewWithLevel(cfg.LogLevel)

	tasks, err := config.LoadTasks(cfg.TasksFile)
	if err != nil {
		return nil, exitWith(exitcode.ConfigError, err)
	}
	logger.Info().Int("tasks", len(tasks)).Str("file", cfg.TasksFile).Msg("task configuration loaded")

	if anyReleaseTracked(tasks) {
		if err := cfg.RequireGitHubToken(); err != nil {
			return nil, exitWith(exitcode.MissingCredentials, err)
		}
	}

	differ := device.NewDiffer(logger)
	cached := device.LoadSnapshot(cfg.CachedDeviceListPath(), logger)
	current := device.LoadSnapshot(cfg.CurrentDeviceListPath(), logger)
	devicesChanged, _, current := differ.Compare(cached, current)

	store := cache.NewFileStore(cfg.ReleaseCachePath(), logger)
	releaseCache, err := store.Load(ctx)
	if err != nil {
		return nil, exitWith(exitcode.ConfigError, err)
	}

	var clientOpts []github.Option
	if cfg.GitHubAPIURL != "" {
		clientOpts = append(clientOpts, github.WithBaseURL(cfg.GitHubAPIURL))
	}
	client := github.NewClient(logger, cfg.GitHubToken, clientOpts...)
	checker := planner.NewChecker(logger, client)

	forceRebuild := cfg.ForceRebuild || flagForce

	plan, err := planner.New(logger, checker).Plan(ctx, tasks, releaseCache, devicesChanged, forceRebuild)
	if err != nil {
		var rateLimitErr *github.RateLimitError
		if errors.As(err, &rateLimitErr) {
			return nil, exitWith(exitcode.RateLimitExceeded, err)
		}
		return nil, exitWith(exitcode.ConfigError, err)
	}

	return &detection{
		cfg:             cfg,
		logger:          logger,
		tasks:           tasks,
		plan:            plan,
		releaseCache:    releaseCache,
		cacheStore:      store,
		client:          client,
		devicesChanged:  devicesChanged,
		currentSnapshot: current,
		forceRebuild:    forceRebuild,
	}, nil
}

func anyReleaseTracked(tasks []config.Task) bool {
	for _, task := range tasks {
		if task.ReleaseTracked() {
			return true
		}
	}
	return false
}

// promoteDeviceSnapshot records the current roster as the new baseline
// for the next run. Called only after every selected task delivered,
// so a failed run re-detects the same device change.
func promoteDeviceSnapshot(cfg config.Config, logger zerolog.Logger) error {
	data, err := os.ReadFile(cfg.CurrentDeviceListPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read current device list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CachedDeviceListPath()), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(cfg.CachedDeviceListPath(), data, 0o644); err != nil {
		return fmt.Errorf("write cached device list: %w", err)
	}
	logger.Info().Str("path", cfg.CachedDeviceListPath()).Msg("device roster baseline updated")
	return nil
}
