// Package cache persists the last successfully delivered release version
// per task. An entry is written only after a task's artifact has been
// signed and uploaded, so the cache never claims a version that was not
// actually shipped.
package cache

import (
	"context"
	"time"
)

// Entry records the release a task last delivered.
type Entry struct {
	Version     string    `json:"version"`
	PublishedAt time.Time `json:"published_at"`
	DownloadURL string    `json:"download_url"`
	AssetID     int64     `json:"asset_id"`
}

// ReleaseCache holds per-task entries keyed by task name.
type ReleaseCache struct {
	Tasks       map[string]Entry `json:"tasks"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Get returns the entry for a task, if one exists.
func (c ReleaseCache) Get(taskName string) (Entry, bool) {
	entry, ok := c.Tasks[taskName]
	return entry, ok
}

// Set records an entry for a task and stamps the cache.
func (c *ReleaseCache) Set(taskName string, entry Entry) {
	if c.Tasks == nil {
		c.Tasks = map[string]Entry{}
	}
	c.Tasks[taskName] = entry
	c.LastUpdated = time.Now().UTC()
}

// Store defines the interface for persisting the release cache.
type Store interface {
	Load(ctx context.Context) (ReleaseCache, error)
	Save(ctx context.Context, cache ReleaseCache) error
}
