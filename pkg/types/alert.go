package types

import "time"

// DattoWebhook represents the webhook payload posted by Datto (usually relayed through Zapier)
type DattoWebhook struct {
	Authentication string `json:"authentication"`
	DattoAlert     string `json:"dattoalert"`
}

// Alert is a single alert accepted from the webhook. Text is never parsed.
type Alert struct {
	ID         string
	Text       string
	ReceivedAt time.Time
}
