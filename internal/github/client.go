package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"

	// rateWarnThreshold is the remaining-quota level below which a
	// warning is logged on every response.
	rateWarnThreshold = 100

	requestTimeout = 30 * time.Second
)

// RateLimitError reports GitHub API quota exhaustion. It is fatal for the
// whole run: every further call would fail the same way.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "GitHub API rate limit exceeded"
	}
	return fmt.Sprintf("GitHub API rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError reports a non-404, non-403 HTTP failure from the releases API.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error %d", e.StatusCode)
}

// Client is a read-only GitHub releases API client. Release lookups are
// issued exactly once per task with no retries: the change detector runs
// on every CI invocation, so a transient failure simply means the task is
// rebuilt and re-checked next time.
type Client struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
	logger  zerolog.Logger

	// Observed over the life of the client; checks run sequentially so
	// plain fields suffice. rateSeen guards rateRemaining: zero is a
	// real quota level, not "never reported".
	apiErrors     int
	rateRemaining int
	rateSeen      bool
}

// Option customizes client behavior.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (primarily for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient constructs a releases API client authenticating with the
// given bearer token.
func NewClient(logger zerolog.Logger, token string, opts ...Option) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: requestTimeout}

	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		client:  client,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the latest stable release. A repository without
// releases returns (nil, nil).
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)

	var release Release
	found, err := c.getJSON(ctx, url, &release)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &release, nil
}

// ListReleases fetches the full release list in upstream order (newest
// first). A repository without releases returns (nil, nil).
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, owner, repo)

	var releases []Release
	found, err := c.getJSON(ctx, url, &releases)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return releases, nil
}

// ResolveRelease fetches the release a task should track. With
// usePrerelease the first prerelease-flagged entry wins; when none is
// flagged the newest release is used as a fallback with a warning. The
// fallback result is reused directly rather than refetched.
func (c *Client) ResolveRelease(ctx context.Context, owner, repo string, usePrerelease bool) (*Release, error) {
	if !usePrerelease {
		return c.LatestRelease(ctx, owner, repo)
	}

	releases, err := c.ListReleases(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, nil
	}
	for i := range releases {
		if releases[i].Prerelease {
			return &releases[i], nil
		}
	}
	c.logger.Warn().
		Str("repo", owner+"/"+repo).
		Str("tag", releases[0].TagName).
		Msg("no prerelease found, falling back to newest release")
	return &releases[0], nil
}

// getJSON issues a GET and decodes the response. It returns found=false
// for 404 (no releases), a RateLimitError for 403, and an APIError for
// any other non-200 status.
func (c *Client) getJSON(ctx context.Context, url string, out any) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.apiErrors++
		return false, fmt.Errorf("GitHub API request failed: %w", err)
	}
	defer resp.Body.Close()

	c.inspectRateLimit(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusForbidden:
		c.apiErrors++
		return false, &RateLimitError{ResetAt: parseResetHeader(resp)}
	default:
		c.apiErrors++
		return false, &APIError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

// APIErrors returns how many release API calls failed, counting network
// failures, rate limiting, and non-200 statuses other than 404.
func (c *Client) APIErrors() int {
	return c.apiErrors
}

// RateLimitRemaining returns the most recent X-RateLimit-Remaining value
// and whether any response carried the header.
func (c *Client) RateLimitRemaining() (int, bool) {
	return c.rateRemaining, c.rateSeen
}

func (c *Client) inspectRateLimit(resp *http.Response) {
	remainingHeader := resp.Header.Get("X-RateLimit-Remaining")
	if remainingHeader == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return
	}
	c.rateRemaining = remaining
	c.rateSeen = true

	c.logger.Debug().Int("remaining", remaining).Msg("GitHub API rate limit")
	if remaining < rateWarnThreshold {
		event := c.logger.Warn().Int("remaining", remaining)
		if resetAt := parseResetHeader(resp); !resetAt.IsZero() {
			event = event.Time("resets_at", resetAt)
		}
		event.Msg("GitHub API rate limit low")
	}
}

func parseResetHeader(resp *http.Response) time.Time {
	epoch, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || epoch <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0).UTC()
}
