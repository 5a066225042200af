package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/cache"
	"github.com/ipafleet/ipa-sentinel/internal/config"
	"github.com/ipafleet/ipa-sentinel/internal/planner"
)

type fakeDownloader struct {
	failFor map[string]bool
	urls    []string
}

func (d *fakeDownloader) Download(ctx context.Context, url, destPath string) error {
	d.urls = append(d.urls, url)
	if d.failFor[url] {
		return errors.New("download refused")
	}
	return os.WriteFile(destPath, []byte("unsigned"), 0o644)
}

type fakeProducer struct {
	requests []SignRequest
	err      error
}

func (p *fakeProducer) Sign(ctx context.Context, req SignRequest) error {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return p.err
	}
	return os.WriteFile(req.OutputPath, []byte("signed"), 0o644)
}

type fakeUploader struct {
	dests []string
	err   error
}

func (u *fakeUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	u.dests = append(u.dests, remotePath)
	return u.err
}

func setTaskProfile(t *testing.T, taskName string) {
	t.Helper()
	t.Setenv(ProfileEnvKey(taskName), base64.StdEncoding.EncodeToString([]byte("profile")))
}

func newTestRunner(t *testing.T, store cache.Store, dl Downloader, prod Producer, up Uploader) *Runner {
	t.Helper()
	return New(zerolog.Nop(), t.TempDir(),
		WithDownloader(dl),
		WithProducer(prod),
		WithUploader(up),
		WithCacheStore(store),
		WithProfileSource(NewProfileSource(t.TempDir())),
		WithSigningIdentity("apple_dev.p12", "secret"),
	)
}

func planFor(decisions map[string]planner.Decision) planner.Plan {
	plan := planner.Plan{Decisions: decisions}
	for name := range decisions {
		plan.Tasks = append(plan.Tasks, name)
	}
	return plan
}

func TestRunnerSignsAndCachesSelectedTasks(t *testing.T) {
	setTaskProfile(t, "scanner")

	store := cache.NewFileStore(filepath.Join(t.TempDir(), "releases.json"), zerolog.Nop())
	dl := &fakeDownloader{}
	prod := &fakeProducer{}
	up := &fakeUploader{}
	r := newTestRunner(t, store, dl, prod, up)

	tasks := []config.Task{{TaskName: "scanner", BundleID: "com.acme.scanner", AssetServerPath: "/srv/ipa/"}}
	plan := planFor(map[string]planner.Decision{
		"scanner": {
			TaskName:       "scanner",
			ShouldRebuild:  true,
			Reason:         planner.ReasonVersionChanged,
			DownloadURL:    "https://example.com/scanner.ipa",
			VersionToCache: &cache.Entry{Version: "v2.0.0"},
		},
	})

	releaseCache := cache.ReleaseCache{}
	summary := r.Run(context.Background(), tasks, plan, &releaseCache)

	if got := summary.Succeeded(); len(got) != 1 || got[0] != "scanner" {
		t.Fatalf("expected scanner to succeed, got %v", got)
	}
	if len(summary.Failed()) != 0 {
		t.Fatalf("expected no failures, got %v", summary.Failed())
	}

	if len(prod.requests) != 1 {
		t.Fatalf("expected one sign request, got %d", len(prod.requests))
	}
	if prod.requests[0].BundleID != "com.acme.scanner" {
		t.Fatalf("bundle id not forwarded: %q", prod.requests[0].BundleID)
	}
	if prod.requests[0].CertPath != "apple_dev.p12" {
		t.Fatalf("signing identity not forwarded: %q", prod.requests[0].CertPath)
	}
	if len(up.dests) != 1 || up.dests[0] != "/srv/ipa/scanner.ipa" {
		t.Fatalf("expected upload to /srv/ipa/scanner.ipa, got %v", up.dests)
	}

	entry, ok := releaseCache.Get("scanner")
	if !ok || entry.Version != "v2.0.0" {
		t.Fatalf("cache should record delivered version, got %+v ok=%v", entry, ok)
	}

	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load persisted cache: %v", err)
	}
	if got, ok := persisted.Get("scanner"); !ok || got.Version != "v2.0.0" {
		t.Fatalf("persisted cache missing scanner entry: %+v ok=%v", got, ok)
	}
}

func TestRunnerFailedTaskLeavesCacheUntouched(t *testing.T) {
	setTaskProfile(t, "scanner")
	setTaskProfile(t, "kiosk")

	store := cache.NewFileStore(filepath.Join(t.TempDir(), "releases.json"), zerolog.Nop())
	dl := &fakeDownloader{failFor: map[string]bool{"https://example.com/scanner.ipa": true}}
	prod := &fakeProducer{}
	up := &fakeUploader{}
	r := newTestRunner(t, store, dl, prod, up)

	tasks := []config.Task{
		{TaskName: "scanner", AssetServerPath: "/srv/ipa/"},
		{TaskName: "kiosk", AssetServerPath: "/srv/ipa/"},
	}
	plan := planFor(map[string]planner.Decision{
		"scanner": {
			TaskName:       "scanner",
			ShouldRebuild:  true,
			Reason:         planner.ReasonVersionChanged,
			DownloadURL:    "https://example.com/scanner.ipa",
			VersionToCache: &cache.Entry{Version: "v2.0.0"},
		},
		"kiosk": {
			TaskName:       "kiosk",
			ShouldRebuild:  true,
			Reason:         planner.ReasonFirstRun,
			DownloadURL:    "https://example.com/kiosk.ipa",
			VersionToCache: &cache.Entry{Version: "v1.0.0"},
		},
	})

	releaseCache := cache.ReleaseCache{}
	releaseCache.Set("scanner", cache.Entry{Version: "v1.9.0"})

	summary := r.Run(context.Background(), tasks, plan, &releaseCache)

	if got := summary.Failed(); len(got) != 1 || got[0] != "scanner" {
		t.Fatalf("expected scanner to fail, got %v", got)
	}
	if got := summary.Succeeded(); len(got) != 1 || got[0] != "kiosk" {
		t.Fatalf("failure should not stop later tasks, got %v", got)
	}

	// The failed task keeps its previously delivered version.
	entry, _ := releaseCache.Get("scanner")
	if entry.Version != "v1.9.0" {
		t.Fatalf("failed task must not advance its cached version, got %q", entry.Version)
	}
	if entry, _ := releaseCache.Get("kiosk"); entry.Version != "v1.0.0" {
		t.Fatalf("successful task should be cached, got %q", entry.Version)
	}
}

func TestRunnerSkipsUnselectedTasks(t *testing.T) {
	setTaskProfile(t, "scanner")

	dl := &fakeDownloader{}
	prod := &fakeProducer{}
	up := &fakeUploader{}
	r := newTestRunner(t, nil, dl, prod, up)

	tasks := []config.Task{
		{TaskName: "scanner"},
		{TaskName: "dormant"},
	}
	plan := planFor(map[string]planner.Decision{
		"scanner": {
			TaskName:      "scanner",
			ShouldRebuild: true,
			Reason:        planner.ReasonForceRebuild,
			DownloadURL:   "https://example.com/scanner.ipa",
		},
	})

	releaseCache := cache.ReleaseCache{}
	summary := r.Run(context.Background(), tasks, plan, &releaseCache)

	if len(summary.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(summary.Results))
	}
	if len(dl.urls) != 1 || dl.urls[0] != "https://example.com/scanner.ipa" {
		t.Fatalf("only selected tasks should download, got %v", dl.urls)
	}
}

func TestRunnerMissingProfileFailsTask(t *testing.T) {
	dl := &fakeDownloader{}
	prod := &fakeProducer{}
	up := &fakeUploader{}
	r := newTestRunner(t, nil, dl, prod, up)

	tasks := []config.Task{{TaskName: "scanner"}}
	plan := planFor(map[string]planner.Decision{
		"scanner": {
			TaskName:      "scanner",
			ShouldRebuild: true,
			Reason:        planner.ReasonFirstRun,
			DownloadURL:   "https://example.com/scanner.ipa",
		},
	})

	summary := r.Run(context.Background(), tasks, plan, &cache.ReleaseCache{})

	if got := summary.Failed(); len(got) != 1 || got[0] != "scanner" {
		t.Fatalf("expected scanner to fail without a profile, got %v", got)
	}
	if len(dl.urls) != 0 {
		t.Fatal("download should not run without a profile")
	}
}

func TestRunnerMissingDownloadURLFailsTask(t *testing.T) {
	setTaskProfile(t, "scanner")

	r := newTestRunner(t, nil, &fakeDownloader{}, &fakeProducer{}, &fakeUploader{})
	plan := planFor(map[string]planner.Decision{
		"scanner": {TaskName: "scanner", ShouldRebuild: true, Reason: planner.ReasonDeviceChanges},
	})

	summary := r.Run(context.Background(), []config.Task{{TaskName: "scanner"}}, plan, &cache.ReleaseCache{})
	if got := summary.Failed(); len(got) != 1 {
		t.Fatalf("expected failure for missing download URL, got %v", summary.Results)
	}
}
