package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// SignRequest carries everything a producer needs to re-sign one
// artifact.
type SignRequest struct {
	InputPath    string
	OutputPath   string
	ProfilePath  string
	CertPath     string
	CertPassword string
	BundleID     string
}

// Producer re-signs a downloaded artifact with the fleet's
// distribution identity. Implementations wrap external signing tools.
type Producer interface {
	Sign(ctx context.Context, req SignRequest) error
}

// runCommandFunc executes an external tool and returns its combined
// output. Tests swap it out.
type runCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ZsignProducer signs artifacts with the zsign binary.
type ZsignProducer struct {
	binPath string
	run     runCommandFunc
}

// NewZsignProducer constructs a ZsignProducer using the given zsign
// binary path.
func NewZsignProducer(binPath string) *ZsignProducer {
	return &ZsignProducer{binPath: binPath, run: runCommand}
}

func (p *ZsignProducer) Sign(ctx context.Context, req SignRequest) error {
	args := []string{
		"-k", req.CertPath,
		"-p", req.CertPassword,
		"-m", req.ProfilePath,
		"-o", req.OutputPath,
	}
	if req.BundleID != "" {
		args = append(args, "-b", req.BundleID)
	}
	args = append(args, req.InputPath)

	out, err := p.run(ctx, p.binPath, args...)
	if err != nil {
		return fmt.Errorf("zsign failed: %w: %s", err, string(out))
	}
	return verifySigned(req.OutputPath)
}

// FastlaneProducer signs artifacts through `fastlane run resign`.
type FastlaneProducer struct {
	run runCommandFunc
}

// NewFastlaneProducer constructs a FastlaneProducer.
func NewFastlaneProducer() *FastlaneProducer {
	return &FastlaneProducer{run: runCommand}
}

func (p *FastlaneProducer) Sign(ctx context.Context, req SignRequest) error {
	// fastlane resigns in place, so stage the input at the output path
	// first.
	if err := copyFile(req.InputPath, req.OutputPath); err != nil {
		return fmt.Errorf("stage artifact for fastlane: %w", err)
	}

	args := []string{
		"run", "resign",
		"ipa:" + req.OutputPath,
		"provisioning_profile:" + req.ProfilePath,
		"keychain_path:" + req.CertPath,
	}
	if req.BundleID != "" {
		args = append(args, "bundle_id:"+req.BundleID)
	}

	out, err := p.run(ctx, "fastlane", args...)
	if err != nil {
		return fmt.Errorf("fastlane resign failed: %w: %s", err, string(out))
	}
	return verifySigned(req.OutputPath)
}

// verifySigned confirms the producer actually wrote a non-empty
// artifact. Some tools exit zero while producing nothing.
func verifySigned(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("signed artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("signed artifact is empty: %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
