package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Task is one signing task from the task configuration file. Exactly one
// of IPAURL (direct download, always rebuilt) and RepoURL (GitHub release
// tracking) should be set; tasks with neither are invalid configuration
// but are still planned, so the downstream pipeline rejects them loudly
// instead of work being dropped silently.
type Task struct {
	TaskName        string `mapstructure:"task_name" yaml:"task_name"`
	AppName         string `mapstructure:"app_name" yaml:"app_name"`
	BundleID        string `mapstructure:"bundle_id" yaml:"bundle_id"`
	IPAURL          string `mapstructure:"ipa_url" yaml:"ipa_url,omitempty"`
	RepoURL         string `mapstructure:"repo_url" yaml:"repo_url,omitempty"`
	UsePrerelease   bool   `mapstructure:"use_prerelease" yaml:"use_prerelease,omitempty"`
	ReleaseGlob     string `mapstructure:"release_glob" yaml:"release_glob,omitempty"`
	AssetServerPath string `mapstructure:"asset_server_path" yaml:"asset_server_path"`
}

// DirectURL reports whether the task downloads from a fixed URL instead
// of tracking GitHub releases.
func (t Task) DirectURL() bool {
	return t.IPAURL != ""
}

// ReleaseTracked reports whether the task follows a GitHub repository's
// releases.
func (t Task) ReleaseTracked() bool {
	return t.RepoURL != ""
}

type taskFile struct {
	Tasks []Task `mapstructure:"tasks" yaml:"tasks"`
}

// LoadTasks parses the task configuration file. TOML and JSON go through
// viper; YAML uses strict decoding so typoed keys are caught.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task config: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var file taskFile

	switch ext {
	case "yaml", "yml":
		decoder := yaml.NewDecoder(strings.NewReader(string(data)))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil {
			return nil, fmt.Errorf("parse task config: %w", err)
		}
	case "toml", "json":
		v := viper.New()
		v.SetConfigType(ext)
		if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("parse task config: %w", err)
		}
		if err := v.Unmarshal(&file); err != nil {
			return nil, fmt.Errorf("parse task config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported task config format: %q", filepath.Ext(path))
	}

	if err := validateTasks(file.Tasks); err != nil {
		return nil, err
	}
	return file.Tasks, nil
}

func validateTasks(tasks []Task) error {
	if len(tasks) == 0 {
		return errors.New("task config contains no tasks")
	}

	seen := make(map[string]bool)

	for i, task := range tasks {
		if task.TaskName == "" {
			return fmt.Errorf("task %d: task_name is required", i)
		}
		if task.AppName == "" {
			return fmt.Errorf("task %q: app_name is required", task.TaskName)
		}
		if task.BundleID == "" {
			return fmt.Errorf("task %q: bundle_id is required", task.TaskName)
		}
		if task.AssetServerPath == "" {
			return fmt.Errorf("task %q: asset_server_path is required", task.TaskName)
		}
		if task.IPAURL != "" && task.RepoURL != "" {
			return fmt.Errorf("task %q: ipa_url and repo_url are mutually exclusive", task.TaskName)
		}
		if task.IPAURL != "" {
			if err := validateHTTPURL(task.IPAURL, "ipa_url"); err != nil {
				return fmt.Errorf("task %q: %w", task.TaskName, err)
			}
		}
		if task.RepoURL != "" {
			if _, err := url.Parse(task.RepoURL); err != nil {
				return fmt.Errorf("task %q: invalid repo_url: %w", task.TaskName, err)
			}
		}
		if seen[task.TaskName] {
			return fmt.Errorf("task %q: duplicate name", task.TaskName)
		}
		seen[task.TaskName] = true
	}

	return nil
}

func validateHTTPURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include a host", name)
	}
	return nil
}
