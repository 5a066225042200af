package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/ipafleet/ipa-sentinel/internal/pipeline"
)

const defaultWebhookTemplate = `{"rebuild_all":{{ .RebuildAll }},"results":{{ toJson .Results }}}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	RebuildAll     bool
	ForceRebuild   bool
	DevicesChanged bool
	Results        []pipeline.TaskResult
	Failed         []string
	GeneratedAt    time.Time
}

// WebhookNotifier sends run reports to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", defaultTiming),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, report Report) error {
	if n == nil || len(report.Results) == 0 {
		return nil
	}

	if err := n.poster.waitForRateLimit(ctx); err != nil {
		return err
	}

	generatedAt := report.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	payload := WebhookPayload{
		RebuildAll:     report.RebuildAll,
		ForceRebuild:   report.ForceRebuild,
		DevicesChanged: report.DevicesChanged,
		Results:        report.Results,
		Failed:         report.Failed(),
		GeneratedAt:    generatedAt,
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.postWithRetry(ctx, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Int("results", len(report.Results)).
		Msg("webhook notification sent")

	return nil
}
