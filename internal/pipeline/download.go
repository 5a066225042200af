// Package pipeline executes the per-task build stage: download the
// artifact, re-sign it, upload it to the asset server, and record the
// delivered version. Tasks run strictly one at a time; a failed task
// never touches the release cache.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// downloadRetries bounds artifact download attempts, mirroring the
// `curl --retry 3` behavior the CI job historically relied on.
const downloadRetries = 3

const downloadTimeout = 10 * time.Minute

// Downloader fetches an artifact to a local file.
type Downloader interface {
	Download(ctx context.Context, url, destPath string) error
}

// HTTPDownloader downloads artifacts over HTTP with bounded retries.
type HTTPDownloader struct {
	client *retryablehttp.Client
}

// NewHTTPDownloader constructs an HTTPDownloader.
func NewHTTPDownloader() *HTTPDownloader {
	client := retryablehttp.NewClient()
	client.RetryMax = downloadRetries
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: downloadTimeout}
	return &HTTPDownloader{client: client}
}

// Download streams the artifact to destPath. An empty download is an
// error: a zero-byte IPA is never a valid artifact.
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download artifact: unexpected status %s", resp.Status)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("close artifact file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(destPath)
		return fmt.Errorf("downloaded artifact is empty: %s", url)
	}
	return nil
}
