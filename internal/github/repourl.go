package github

import (
	"fmt"
	"regexp"
)

// repoPattern accepts both HTTPS remotes (https://github.com/owner/repo,
// with or without a .git suffix) and SSH-style remotes
// (git@github.com:owner/repo).
var repoPattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+)`)

// ParseRepoURL extracts the owner and repository name from a GitHub remote.
func ParseRepoURL(repoURL string) (string, string, error) {
	match := repoPattern.FindStringSubmatch(repoURL)
	if match == nil {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %s", repoURL)
	}
	return match[1], match[2], nil
}
