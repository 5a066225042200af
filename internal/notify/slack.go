package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/ipafleet/ipa-sentinel/internal/pipeline"
)

const (
	slackMaxBlocks = 50
	// slackReservedBlocks accounts for the header and context blocks in
	// each message.
	slackReservedBlocks = 2
	slackMaxResults     = slackMaxBlocks - slackReservedBlocks
)

type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the
// webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, report Report) error {
	if len(report.Results) == 0 {
		return nil
	}
	if err := n.poster.waitForRateLimit(ctx); err != nil {
		return err
	}

	messages := buildSlackMessages(report)
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		if err := n.poster.postWithRetry(ctx, payload); err != nil {
			return err
		}
	}

	n.logger.Debug().
		Int("results", len(report.Results)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func (n *SlackNotifier) postOnce(ctx context.Context, payload []byte) error {
	return n.poster.postOnce(ctx, payload)
}

func buildSlackMessages(report Report) []slack.WebhookMessage {
	total := len(report.Results)
	if total == 0 {
		return nil
	}

	chunkTotal := (total + slackMaxResults - 1) / slackMaxResults
	messages := make([]slack.WebhookMessage, 0, chunkTotal)

	for i := 0; i < total; i += slackMaxResults {
		end := i + slackMaxResults
		if end > total {
			end = total
		}
		partIndex := (i / slackMaxResults) + 1
		messages = append(messages, buildSlackMessage(report, report.Results[i:end], partIndex, chunkTotal))
	}
	return messages
}

func buildSlackMessage(report Report, results []pipeline.TaskResult, partIndex, partTotal int) slack.WebhookMessage {
	failed := len(report.Failed())
	summary := fmt.Sprintf("IPA fleet run: %d task(s), %d failed", len(report.Results), failed)
	if partTotal > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, partIndex, partTotal)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))

	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Trigger: *%s*", describeTrigger(report)), false, false),
	}
	if report.Duration > 0 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Duration: %s", report.Duration.Round(time.Second)), false, false))
	}
	if partTotal > 1 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Batch: %d/%d", partIndex, partTotal), false, false))
	}
	contextBlock := slack.NewContextBlock("", contextElements...)

	blocks := []slack.Block{header, contextBlock}
	for _, result := range results {
		blocks = append(blocks, buildResultBlock(result))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildResultBlock(result pipeline.TaskResult) slack.Block {
	icon := ":white_check_mark:"
	if result.Status == pipeline.StatusFailed {
		icon = ":x:"
	}
	title := fmt.Sprintf("%s *%s* (`%s`)", icon, result.TaskName, result.Reason)
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 3)
	if result.Version != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Version:*\n"+result.Version, false, false))
	}
	if result.RemoteDest != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Delivered to:*\n`"+result.RemoteDest+"`", false, false))
	}
	if result.Detail != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Error:*\n"+result.Detail, false, false))
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func describeTrigger(report Report) string {
	switch {
	case report.ForceRebuild:
		return "force rebuild"
	case report.DevicesChanged:
		return "device roster changed"
	default:
		return "release updates"
	}
}
