package pipeline

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// profileEnvSuffix is appended to the task's environment key to locate
// its base64-encoded provisioning profile.
const profileEnvSuffix = "_MOBILEPROVISION"

// ProfileSource resolves a task's provisioning profile. Profiles are
// delivered base64-encoded, either through the environment (CI
// secrets) or as committed .b64 files under the profile directory.
type ProfileSource struct {
	profileDir string
}

// NewProfileSource constructs a ProfileSource rooted at profileDir.
func NewProfileSource(profileDir string) *ProfileSource {
	return &ProfileSource{profileDir: profileDir}
}

// ProfileEnvKey is the environment variable consulted for a task's
// profile: the uppercased task name, verbatim, plus the suffix. Task
// names are not slugified here so existing CI secret names keep
// resolving.
func ProfileEnvKey(taskName string) string {
	return strings.ToUpper(strings.TrimSpace(taskName)) + profileEnvSuffix
}

// Resolve decodes the task's profile into destDir and returns the
// decoded bytes along with the written file path. The environment
// takes precedence over the profile directory.
func (s *ProfileSource) Resolve(taskName, destDir string) (string, []byte, error) {
	encoded := os.Getenv(ProfileEnvKey(taskName))
	if encoded == "" {
		b64Path := filepath.Join(s.profileDir, strings.ToUpper(strings.TrimSpace(taskName))+".mobileprovision.b64")
		data, err := os.ReadFile(b64Path)
		if err != nil {
			return "", nil, fmt.Errorf("no provisioning profile for task %q: set %s or provide %s",
				taskName, ProfileEnvKey(taskName), b64Path)
		}
		encoded = string(data)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", nil, fmt.Errorf("decode provisioning profile for task %q: %w", taskName, err)
	}

	profilePath := filepath.Join(destDir, Slugify(taskName)+".mobileprovision")
	if err := os.WriteFile(profilePath, raw, 0o600); err != nil {
		return "", nil, fmt.Errorf("write provisioning profile: %w", err)
	}
	return profilePath, raw, nil
}
