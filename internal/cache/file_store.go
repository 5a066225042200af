package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists the release cache as JSON on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore returns a JSON-backed release cache store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the cache from disk. Missing or corrupt files degrade to an
// empty cache with a warning: every task then looks like a first run,
// which is safe.
func (s *FileStore) Load(ctx context.Context) (ReleaseCache, error) {
	if err := ctx.Err(); err != nil {
		return ReleaseCache{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", s.path).Msg("release cache missing, starting fresh")
			return ReleaseCache{Tasks: map[string]Entry{}}, nil
		}
		return ReleaseCache{}, err
	}

	var cache ReleaseCache
	if err := json.Unmarshal(data, &cache); err != nil {
		s.logger.Warn().Str("path", s.path).Err(err).Msg("release cache corrupt, starting fresh")
		return ReleaseCache{Tasks: map[string]Entry{}}, nil
	}
	if cache.Tasks == nil {
		cache.Tasks = map[string]Entry{}
	}
	return cache, nil
}

// Save writes the cache to disk atomically.
func (s *FileStore) Save(ctx context.Context, cache ReleaseCache) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cache.Tasks == nil {
		cache.Tasks = map[string]Entry{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".release-cache-*.json")
	if err != nil {
		return err
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	encoder := json.NewEncoder(tempFile)
	if err := encoder.Encode(cache); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tempFile.Name(), s.path); err != nil {
		cleanup()
		return err
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}
