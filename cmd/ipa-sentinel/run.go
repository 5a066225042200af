package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ipafleet/ipa-sentinel/internal/device"
	"github.com/ipafleet/ipa-sentinel/internal/exitcode"
	"github.com/ipafleet/ipa-sentinel/internal/metrics"
	"github.com/ipafleet/ipa-sentinel/internal/notify"
	"github.com/ipafleet/ipa-sentinel/internal/output"
	"github.com/ipafleet/ipa-sentinel/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Detect changes and rebuild affected tasks",
	Long:         "Runs change detection, then downloads, re-signs, and uploads every task in the rebuild set, updating the release cache after each successful delivery.",
	RunE:         runRun,
	SilenceUsage: true,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	det, err := detect(ctx)
	if err != nil {
		return err
	}
	cfg := det.cfg
	logger := det.logger

	writer := output.NewWriter(logger, cfg.GitHubOutput, cmd.OutOrStdout())
	if err := writer.Emit(output.Result{
		RebuildAll:   det.plan.RebuildAll,
		RebuildTasks: det.plan.Tasks,
		ForceRebuild: det.forceRebuild,
		DevicesMoved: det.devicesChanged,
	}); err != nil {
		return exitWith(exitcode.ConfigError, err)
	}

	if len(det.plan.Tasks) == 0 {
		logger.Info().Msg("nothing to rebuild")
		return nil
	}

	if flagDryRun {
		for _, name := range det.plan.Tasks {
			decision := det.plan.Decisions[name]
			logger.Info().
				Str("task", name).
				Str("reason", string(decision.Reason)).
				Str("download_url", decision.DownloadURL).
				Msg("[DRY-RUN] would rebuild")
		}
		return nil
	}

	if err := cfg.RequireSigningCredentials(); err != nil {
		return exitWith(exitcode.MissingCredentials, err)
	}

	var producer pipeline.Producer
	switch cfg.Signer {
	case "fastlane":
		producer = pipeline.NewFastlaneProducer()
	default:
		producer = pipeline.NewZsignProducer(cfg.ZsignPath)
	}

	var roster []device.Device
	if det.currentSnapshot != nil {
		roster = det.currentSnapshot.Devices
	}

	runner := pipeline.New(logger, filepath.Join(cfg.CacheDir, "build"),
		pipeline.WithProducer(producer),
		pipeline.WithUploader(pipeline.NewSCPUploader(cfg.AssetsServerIP, cfg.AssetsServerUser, cfg.AssetsPassword)),
		pipeline.WithCacheStore(det.cacheStore),
		pipeline.WithSigningIdentity(cfg.CertPath, cfg.CertPassword),
		pipeline.WithDeviceRoster(roster),
	)

	summary := runner.Run(ctx, det.tasks, det.plan, &det.releaseCache)
	elapsed := time.Since(start)

	report := notify.Report{
		RebuildAll:     det.plan.RebuildAll,
		ForceRebuild:   det.forceRebuild,
		DevicesChanged: det.devicesChanged,
		Results:        summary.Results,
		Duration:       elapsed,
		GeneratedAt:    time.Now().UTC(),
	}
	notifier := notify.NewMultiNotifier(buildNotifiers(det)...)
	if err := notifier.Notify(ctx, report); err != nil {
		logger.Warn().Err(err).Msg("notification delivery failed")
	}

	pushMetrics(det, summary, elapsed)

	failed := summary.Failed()
	if len(failed) == 0 {
		if err := promoteDeviceSnapshot(cfg, logger); err != nil {
			logger.Warn().Err(err).Msg("failed to update device roster baseline")
		}
		logger.Info().
			Int("delivered", len(summary.Succeeded())).
			Dur("elapsed", elapsed).
			Msg("run complete")
		return nil
	}

	return exitWith(exitcode.TaskFailures, fmt.Errorf("%d task(s) failed: %v", len(failed), failed))
}

func buildNotifiers(det *detection) []notify.Notifier {
	var notifiers []notify.Notifier
	if det.cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(det.logger, det.cfg.SlackWebhookURL))
	}
	if det.cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(det.logger, det.cfg.WebhookURL, "")
		if err != nil {
			det.logger.Warn().Err(err).Msg("webhook notifier disabled")
		} else {
			notifiers = append(notifiers, webhook)
		}
	}
	return notifiers
}

func pushMetrics(det *detection, summary pipeline.Summary, elapsed time.Duration) {
	if det.cfg.PushgatewayURL == "" {
		return
	}

	m := metrics.New()
	m.ObserveRunDuration(elapsed)
	m.SetLastRunTimestamp(time.Now())
	for _, name := range det.plan.Tasks {
		m.IncTasksPlanned(string(det.plan.Decisions[name].Reason))
	}
	for _, result := range summary.Results {
		m.IncTaskResult(string(result.Status))
	}
	if det.client != nil {
		m.AddGitHubAPIErrors(det.client.APIErrors())
		if remaining, ok := det.client.RateLimitRemaining(); ok {
			m.SetRateLimitRemaining(remaining)
		}
	}
	if err := m.Push(det.cfg.PushgatewayURL); err != nil {
		det.logger.Warn().Err(err).Msg("metrics push failed")
	}
}
