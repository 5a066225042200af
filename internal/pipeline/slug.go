package pipeline

import "strings"

// Slugify reduces a task name to a filesystem and remote-path safe
// token. Anything outside [A-Za-z0-9._-] becomes an underscore, runs
// of underscores collapse, and leading or trailing underscores are
// trimmed, as are leading or trailing dots and hyphens. An empty
// result falls back to "app".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastUnderscore := false
	for _, r := range name {
		safe := r >= 'a' && r <= 'z' ||
			r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' ||
			r == '.' || r == '_' || r == '-'
		if safe && r != '_' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	slug := strings.Trim(b.String(), "._-")
	if slug == "" {
		return "app"
	}
	return slug
}
