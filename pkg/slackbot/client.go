// Package slackbot wraps the slack-go client with the messages and sessions alertdesk needs.
package slackbot

import (
	"context"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API used per team
type API interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

var _ API = (*slack.Client)(nil)

// Options configures clients created by NewClient
type Options struct {
	// APIURL overrides https://slack.com/api/ (tests, proxies)
	APIURL string
	Debug  bool
}

// NewClient creates a Slack Web API client for a bot token
func NewClient(token string, opts Options) *slack.Client {
	options := []slack.Option{slack.OptionDebug(opts.Debug)}
	if opts.APIURL != "" {
		options = append(options, slack.OptionAPIURL(opts.APIURL))
	}
	return slack.New(token, options...)
}

// DisplayName returns the name shown when attributing an action to a user
func DisplayName(user *slack.User) string {
	if user == nil {
		return ""
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.Name
}
