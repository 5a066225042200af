// Package exitcode defines the process exit codes reported by ipa-sentinel.
package exitcode

// Exit codes, kept stable so CI workflows can branch on them.
const (
	OK                 = 0
	ConfigError        = 2
	MissingCredentials = 3
	RateLimitExceeded  = 4
	TaskFailures       = 5
)

var descriptions = map[int]string{
	OK:                 "Success",
	ConfigError:        "Configuration file missing or invalid",
	MissingCredentials: "Required credentials not set",
	RateLimitExceeded:  "GitHub API rate limit exhausted",
	TaskFailures:       "One or more tasks failed",
}

// Describe returns a human-readable description for a process exit code.
func Describe(code int) string {
	if msg, ok := descriptions[code]; ok {
		return msg
	}
	return "Unknown error"
}
