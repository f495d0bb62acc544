package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// ReplaceOriginal swaps the attachments of the message an interaction came from.
// The callback's response_url is used when present, otherwise chat.update with the bot token.
func ReplaceOriginal(ctx context.Context, api API, cb slack.InteractionCallback, attachments ...slack.Attachment) error {
	if cb.ResponseURL != "" {
		msg := &slack.WebhookMessage{
			Text:            cb.OriginalMessage.Text,
			Attachments:     attachments,
			ReplaceOriginal: true,
		}
		if err := slack.PostWebhookContext(ctx, cb.ResponseURL, msg); err != nil {
			return fmt.Errorf("failed to replace message via response_url: %w", err)
		}
		return nil
	}

	ts := cb.OriginalMessage.Timestamp
	if ts == "" {
		ts = cb.MessageTs
	}
	_, _, _, err := api.UpdateMessageContext(ctx, cb.Channel.ID, ts,
		slack.MsgOptionText(cb.OriginalMessage.Text, false),
		slack.MsgOptionAttachments(attachments...),
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}
