package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"

	"github.com/rs/zerolog"
)

// LoadSnapshot reads a roster snapshot from disk. A missing or unreadable
// file returns nil without an error: the differ treats an absent snapshot
// as a rebuild-everything signal, so degraded input must not abort the run.
func LoadSnapshot(path string, logger zerolog.Logger) *Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("path", path).Err(err).Msg("failed to read device list")
		}
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var snapshot Snapshot
	if err := decoder.Decode(&snapshot); err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("failed to parse device list")
		return nil
	}
	return &snapshot
}
