// Package output emits change-detection results to the CI output channel
// (an append-only key=value file) and to stdout for human inspection.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Result is what a run publishes: the global rebuild signal and the
// sorted set of task names to rebuild.
type Result struct {
	RebuildAll   bool
	RebuildTasks []string
	ForceRebuild bool
	DevicesMoved bool
}

// Writer publishes results.
type Writer struct {
	logger     zerolog.Logger
	outputPath string
	stdout     io.Writer
}

// NewWriter constructs a Writer. outputPath may be empty (no CI output
// file, stdout only).
func NewWriter(logger zerolog.Logger, outputPath string, stdout io.Writer) *Writer {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Writer{logger: logger, outputPath: outputPath, stdout: stdout}
}

// Emit writes the key=value pairs and the human-readable summary. A
// failure to append to the output file is a warning, not an error: the
// decision itself already happened and stdout still carries it.
func (w *Writer) Emit(result Result) error {
	tasksJSON, err := json.Marshal(result.RebuildTasks)
	if err != nil {
		return fmt.Errorf("encode rebuild tasks: %w", err)
	}
	if result.RebuildTasks == nil {
		tasksJSON = []byte("[]")
	}

	if w.outputPath != "" {
		if err := w.appendOutputs(result.RebuildAll, tasksJSON); err != nil {
			w.logger.Warn().Err(err).Str("path", w.outputPath).Msg("failed to write CI outputs")
		}
	}

	fmt.Fprintf(w.stdout, "\nChange detection results:\n")
	fmt.Fprintf(w.stdout, "  REBUILD_ALL: %t\n", result.RebuildAll)
	fmt.Fprintf(w.stdout, "  REBUILD_TASKS: %s\n", tasksJSON)

	switch {
	case result.ForceRebuild:
		fmt.Fprintf(w.stdout, "\nForce rebuild requested - will rebuild all tasks\n")
	case result.DevicesMoved:
		fmt.Fprintf(w.stdout, "\nDevice list changed - will regenerate profiles and rebuild all tasks\n")
	case len(result.RebuildTasks) > 0:
		fmt.Fprintf(w.stdout, "\nWill rebuild %d task(s): %s\n", len(result.RebuildTasks), strings.Join(result.RebuildTasks, ", "))
	default:
		fmt.Fprintf(w.stdout, "\nNo tasks need rebuilding\n")
	}

	return nil
}

func (w *Writer) appendOutputs(rebuildAll bool, tasksJSON []byte) error {
	f, err := os.OpenFile(w.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "rebuild_all=%t\n", rebuildAll); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "rebuild_tasks=%s\n", tasksJSON); err != nil {
		return err
	}
	return nil
}
