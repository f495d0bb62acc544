package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port string
	// Slack app
	SlackClientID      string
	SlackClientSecret  string
	SlackSigningSecret string
	OAuthRedirectURL   string
	SlackAPIURL        string // overrides https://slack.com/api/ for bot connections
	// Freshservice
	TicketSystemURL      string
	TicketSystemAPIKey   string
	TicketRequesterEmail string
	// Storage
	DatabaseURL string
	RedisURL    string
	// Datto webhook shared secret and accepted body encodings
	WebhookSecret    string
	WebhookEncodings []string
	// Alert presentation
	AlertsChannel      string
	AlertTextPlacement string // "body" or "title"
	ResetFieldMode     string // "append" or "replace"
	BotUsername        string
	BotIconEmoji       string
	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
}

// key is one configuration entry and the environment variables it is read from
type key struct {
	name     string
	envs     []string
	def      string
	required bool
}

var keys = []key{
	{name: "port", envs: []string{"PORT"}, required: true},
	{name: "slack_client_id", envs: []string{"SLACK_CLIENT_ID", "slackClientID"}, required: true},
	{name: "slack_client_secret", envs: []string{"SLACK_CLIENT_SECRET", "slackClientSecret"}, required: true},
	{name: "slack_signing_secret", envs: []string{"SLACK_SIGNING_SECRET"}},
	{name: "oauth_redirect_url", envs: []string{"OAUTH_REDIRECT_URL"}},
	{name: "slack_api_url", envs: []string{"SLACK_API_URL"}},
	{name: "ticket_system_url", envs: []string{"TICKET_SYSTEM_URL", "ticketSystemUrl"}, required: true},
	{name: "ticket_system_api_key", envs: []string{"TICKET_SYSTEM_API_KEY", "ticketSystemAPIKey"}, required: true},
	{name: "ticket_requester_email", envs: []string{"TICKET_REQUESTER_EMAIL"}, def: "noreply@dattobackup.com"},
	{name: "database_url", envs: []string{"DATABASE_URL", "mongoUri"}, required: true},
	{name: "redis_url", envs: []string{"REDIS_URL"}},
	{name: "webhook_secret", envs: []string{"DATTO_API_KEY", "dattoAPIKey"}, required: true},
	{name: "webhook_encodings", envs: []string{"WEBHOOK_ENCODINGS"}, def: "json,form"},
	{name: "alerts_channel", envs: []string{"ALERTS_CHANNEL"}, def: "alerts"},
	{name: "alert_text_placement", envs: []string{"ALERT_TEXT_PLACEMENT"}, def: "body"},
	{name: "reset_field_mode", envs: []string{"RESET_FIELD_MODE"}, def: "append"},
	{name: "bot_username", envs: []string{"BOT_USERNAME"}, def: "dorian"},
	{name: "bot_icon_emoji", envs: []string{"BOT_ICON_EMOJI"}, def: ":panda_face:"},
	{name: "log_level", envs: []string{"LOG_LEVEL"}, def: "info"},
	{name: "log_format", envs: []string{"LOG_FORMAT"}, def: "text"},
}

// Bind registers defaults and environment variable names on v
func Bind(v *viper.Viper) {
	for _, k := range keys {
		args := append([]string{k.name}, k.envs...)
		_ = v.BindEnv(args...)
		if k.def != "" {
			v.SetDefault(k.name, k.def)
		}
	}
}

// LoadConfig loads configuration from v. Call Bind first.
func LoadConfig(v *viper.Viper) *Config {
	return &Config{
		Port:                 v.GetString("port"),
		SlackClientID:        v.GetString("slack_client_id"),
		SlackClientSecret:    v.GetString("slack_client_secret"),
		SlackSigningSecret:   v.GetString("slack_signing_secret"),
		OAuthRedirectURL:     v.GetString("oauth_redirect_url"),
		SlackAPIURL:          v.GetString("slack_api_url"),
		TicketSystemURL:      v.GetString("ticket_system_url"),
		TicketSystemAPIKey:   v.GetString("ticket_system_api_key"),
		TicketRequesterEmail: v.GetString("ticket_requester_email"),
		DatabaseURL:          v.GetString("database_url"),
		RedisURL:             v.GetString("redis_url"),
		WebhookSecret:        v.GetString("webhook_secret"),
		WebhookEncodings:     splitList(v.GetString("webhook_encodings")),
		AlertsChannel:        v.GetString("alerts_channel"),
		AlertTextPlacement:   strings.ToLower(v.GetString("alert_text_placement")),
		ResetFieldMode:       strings.ToLower(v.GetString("reset_field_mode")),
		BotUsername:          v.GetString("bot_username"),
		BotIconEmoji:         v.GetString("bot_icon_emoji"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            strings.ToLower(v.GetString("log_format")),
	}
}

// Validate reports every missing required variable and every invalid option
func (c *Config) Validate() error {
	values := map[string]string{
		"port":                  c.Port,
		"slack_client_id":       c.SlackClientID,
		"slack_client_secret":   c.SlackClientSecret,
		"ticket_system_url":     c.TicketSystemURL,
		"ticket_system_api_key": c.TicketSystemAPIKey,
		"database_url":          c.DatabaseURL,
		"webhook_secret":        c.WebhookSecret,
	}

	var problems []string
	for _, k := range keys {
		if k.required && values[k.name] == "" {
			problems = append(problems, "missing "+strings.Join(k.envs, " or "))
		}
	}

	if c.AlertTextPlacement != "body" && c.AlertTextPlacement != "title" {
		problems = append(problems, fmt.Sprintf("ALERT_TEXT_PLACEMENT must be body or title, got %q", c.AlertTextPlacement))
	}
	if c.ResetFieldMode != "append" && c.ResetFieldMode != "replace" {
		problems = append(problems, fmt.Sprintf("RESET_FIELD_MODE must be append or replace, got %q", c.ResetFieldMode))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if len(c.WebhookEncodings) == 0 {
		problems = append(problems, "WEBHOOK_ENCODINGS must list json, form or both")
	}
	for _, enc := range c.WebhookEncodings {
		if enc != "json" && enc != "form" {
			problems = append(problems, fmt.Sprintf("WEBHOOK_ENCODINGS entries must be json or form, got %q", enc))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TicketHost returns the helpdesk host without scheme or trailing slash
func (c *Config) TicketHost() string {
	host := strings.TrimPrefix(c.TicketSystemURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// splitList parses a comma separated value, dropping blanks
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			items = append(items, item)
		}
	}
	return items
}
