package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/cache"
	"github.com/ipafleet/ipa-sentinel/internal/config"
	"github.com/ipafleet/ipa-sentinel/internal/device"
	"github.com/ipafleet/ipa-sentinel/internal/planner"
	"github.com/ipafleet/ipa-sentinel/internal/provision"
)

// TaskStatus is the terminal state of one task's build.
type TaskStatus string

const (
	StatusSigned TaskStatus = "signed"
	StatusFailed TaskStatus = "failed"
)

// TaskResult records how one task's build ended.
type TaskResult struct {
	TaskName   string
	Status     TaskStatus
	Reason     planner.Reason
	Detail     string
	Version    string
	RemoteDest string
	Elapsed    time.Duration
}

// Summary aggregates a full pipeline run.
type Summary struct {
	RebuildAll bool
	Results    []TaskResult
}

// Failed returns the names of tasks that did not complete.
func (s Summary) Failed() []string {
	var names []string
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			names = append(names, r.TaskName)
		}
	}
	return names
}

// Succeeded returns the names of tasks delivered to the asset server.
func (s Summary) Succeeded() []string {
	var names []string
	for _, r := range s.Results {
		if r.Status == StatusSigned {
			names = append(names, r.TaskName)
		}
	}
	return names
}

// Runner executes the build pipeline for every task a plan selected.
// Tasks run sequentially; one task's failure never stops the rest.
type Runner struct {
	logger       zerolog.Logger
	workDir      string
	downloader   Downloader
	producer     Producer
	uploader     Uploader
	profiles     *ProfileSource
	cacheStore   cache.Store
	certPath     string
	certPassword string
	roster       []device.Device
	now          func() time.Time
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithDownloader overrides how artifacts are fetched.
func WithDownloader(d Downloader) Option {
	return func(r *Runner) {
		r.downloader = d
	}
}

// WithProducer sets the signing backend.
func WithProducer(p Producer) Option {
	return func(r *Runner) {
		r.producer = p
	}
}

// WithUploader sets the asset server delivery backend.
func WithUploader(u Uploader) Option {
	return func(r *Runner) {
		r.uploader = u
	}
}

// WithProfileSource sets where provisioning profiles come from.
func WithProfileSource(s *ProfileSource) Option {
	return func(r *Runner) {
		r.profiles = s
	}
}

// WithCacheStore enables release cache persistence after the run.
func WithCacheStore(store cache.Store) Option {
	return func(r *Runner) {
		r.cacheStore = store
	}
}

// WithSigningIdentity sets the certificate used for re-signing.
func WithSigningIdentity(certPath, certPassword string) Option {
	return func(r *Runner) {
		r.certPath = certPath
		r.certPassword = certPassword
	}
}

// WithDeviceRoster enables provisioning coverage warnings against the
// current device roster.
func WithDeviceRoster(roster []device.Device) Option {
	return func(r *Runner) {
		r.roster = roster
	}
}

// New constructs a Runner rooted at workDir.
func New(logger zerolog.Logger, workDir string, opts ...Option) *Runner {
	r := &Runner{
		logger:  logger,
		workDir: workDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.downloader == nil {
		r.downloader = NewHTTPDownloader()
	}
	if r.profiles == nil {
		r.profiles = NewProfileSource(filepath.Join("configs", "mobileprovision"))
	}
	return r
}

// Run builds every task the plan selected, in the order tasks appear
// in configuration. The release cache is updated in memory after each
// successful task and persisted once at the end, so a failed task
// never advances its cached version.
func (r *Runner) Run(ctx context.Context, tasks []config.Task, plan planner.Plan, releaseCache *cache.ReleaseCache) Summary {
	summary := Summary{RebuildAll: plan.RebuildAll}

	for _, task := range tasks {
		if !plan.Includes(task.TaskName) {
			r.logger.Debug().Str("task", task.TaskName).Msg("task not selected, skipping")
			continue
		}

		decision := plan.Decisions[task.TaskName]
		start := r.now()
		result := r.runTask(ctx, task, decision)
		result.Elapsed = r.now().Sub(start)

		if result.Status == StatusSigned && decision.VersionToCache != nil {
			releaseCache.Set(task.TaskName, *decision.VersionToCache)
		}

		event := r.logger.Info()
		if result.Status == StatusFailed {
			event = r.logger.Error().Str("detail", result.Detail)
		}
		event.
			Str("task", task.TaskName).
			Str("status", string(result.Status)).
			Str("reason", string(result.Reason)).
			Dur("elapsed", result.Elapsed).
			Msg("task finished")

		summary.Results = append(summary.Results, result)
	}

	if r.cacheStore != nil {
		if err := r.cacheStore.Save(ctx, *releaseCache); err != nil {
			r.logger.Warn().Err(err).Msg("failed to persist release cache")
		}
	}

	return summary
}

func (r *Runner) runTask(ctx context.Context, task config.Task, decision planner.Decision) TaskResult {
	result := TaskResult{
		TaskName: task.TaskName,
		Reason:   decision.Reason,
	}
	fail := func(detail string) TaskResult {
		result.Status = StatusFailed
		result.Detail = detail
		return result
	}

	if decision.DownloadURL == "" {
		return fail("no download URL resolved for task")
	}
	if decision.VersionToCache != nil {
		result.Version = decision.VersionToCache.Version
	}

	slug := Slugify(task.TaskName)
	taskDir := filepath.Join(r.workDir, slug)
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return fail("create task work directory: " + err.Error())
	}

	profilePath, rawProfile, err := r.profiles.Resolve(task.TaskName, taskDir)
	if err != nil {
		return fail(err.Error())
	}
	r.inspectProfile(task.TaskName, rawProfile)

	inputPath := filepath.Join(taskDir, slug+"-unsigned.ipa")
	if err := r.downloader.Download(ctx, decision.DownloadURL, inputPath); err != nil {
		return fail(err.Error())
	}

	signedPath := filepath.Join(taskDir, slug+".ipa")
	err = r.producer.Sign(ctx, SignRequest{
		InputPath:    inputPath,
		OutputPath:   signedPath,
		ProfilePath:  profilePath,
		CertPath:     r.certPath,
		CertPassword: r.certPassword,
		BundleID:     task.BundleID,
	})
	if err != nil {
		return fail(err.Error())
	}

	remoteDest := BuildRemoteDest(task.AssetServerPath, task.TaskName)
	if err := r.uploader.Upload(ctx, signedPath, remoteDest); err != nil {
		return fail(err.Error())
	}

	result.Status = StatusSigned
	result.RemoteDest = remoteDest
	return result
}

// inspectProfile surfaces expiry and device coverage problems before
// signing. Problems here are warnings only; the signing tool is the
// final authority on whether the profile is usable.
func (r *Runner) inspectProfile(taskName string, raw []byte) {
	profile, err := provision.Parse(raw)
	if err != nil {
		r.logger.Warn().Err(err).Str("task", taskName).Msg("could not inspect provisioning profile")
		return
	}

	if profile.IsExpired(r.now()) {
		r.logger.Warn().
			Str("task", taskName).
			Str("profile", profile.Name).
			Time("expired_at", profile.ExpirationDate).
			Msg("provisioning profile is expired")
	}

	if len(r.roster) > 0 {
		if uncovered := profile.UncoveredDevices(r.roster); len(uncovered) > 0 {
			names := make([]string, 0, len(uncovered))
			for _, dev := range uncovered {
				names = append(names, dev.Name())
			}
			r.logger.Warn().
				Str("task", taskName).
				Str("profile", profile.Name).
				Strs("devices", names).
				Msg("devices missing from provisioning profile")
		}
	}
}
