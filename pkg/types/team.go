package types

import "time"

// Team is a Slack workspace that installed the app
type Team struct {
	ID        string
	Name      string
	BotUserID string
	BotToken  string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBot reports whether the installation carries a bot credential
func (t Team) HasBot() bool {
	return t.BotToken != ""
}
