package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFakeArtifact(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("ipa-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
}

func TestZsignProducerBuildsExpectedCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "signed.ipa")

	var gotName string
	var gotArgs []string
	p := NewZsignProducer("/usr/local/bin/zsign")
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		writeFakeArtifact(t, out)
		return nil, nil
	}

	err := p.Sign(context.Background(), SignRequest{
		InputPath:    filepath.Join(dir, "in.ipa"),
		OutputPath:   out,
		ProfilePath:  filepath.Join(dir, "app.mobileprovision"),
		CertPath:     "apple_dev.p12",
		CertPassword: "secret",
		BundleID:     "com.acme.app",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotName != "/usr/local/bin/zsign" {
		t.Fatalf("expected zsign binary, got %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-k apple_dev.p12", "-p secret", "-o " + out, "-b com.acme.app"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %q", want, joined)
		}
	}
	if gotArgs[len(gotArgs)-1] != filepath.Join(dir, "in.ipa") {
		t.Fatalf("input path should be the final argument, got %q", gotArgs[len(gotArgs)-1])
	}
}

func TestZsignProducerToolFailure(t *testing.T) {
	p := NewZsignProducer("zsign")
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("bad cert"), errors.New("exit status 1")
	}

	err := p.Sign(context.Background(), SignRequest{OutputPath: filepath.Join(t.TempDir(), "out.ipa")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bad cert") {
		t.Fatalf("error should carry tool output, got %v", err)
	}
}

func TestZsignProducerRejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "signed.ipa")

	p := NewZsignProducer("zsign")
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		// Tool exits zero but writes nothing.
		if err := os.WriteFile(out, nil, 0o644); err != nil {
			t.Fatalf("failed to write empty artifact: %v", err)
		}
		return nil, nil
	}

	err := p.Sign(context.Background(), SignRequest{OutputPath: out})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty artifact error, got %v", err)
	}
}

func TestFastlaneProducerStagesInputAndResigns(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.ipa")
	out := filepath.Join(dir, "signed.ipa")
	writeFakeArtifact(t, in)

	var gotName string
	var gotArgs []string
	p := NewFastlaneProducer()
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}

	err := p.Sign(context.Background(), SignRequest{
		InputPath:   in,
		OutputPath:  out,
		ProfilePath: "app.mobileprovision",
		CertPath:    "login.keychain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	staged, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output should be staged before resign: %v", err)
	}
	if string(staged) != "ipa-bytes" {
		t.Fatalf("staged artifact differs from input: %q", staged)
	}

	if gotName != "fastlane" {
		t.Fatalf("expected fastlane, got %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "run resign") || !strings.Contains(joined, "ipa:"+out) {
		t.Fatalf("unexpected fastlane args: %q", joined)
	}
}
