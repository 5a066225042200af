package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs reports without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, report Report) error {
	for _, result := range report.Results {
		n.logger.Info().
			Str("task", result.TaskName).
			Str("status", string(result.Status)).
			Str("reason", string(result.Reason)).
			Str("version", result.Version).
			Msg("[DRY-RUN] Would notify")
	}
	return nil
}
