package lifecycle

import (
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// SlackConnector opens real RTM sessions with slack-go
type SlackConnector struct {
	Options slackbot.Options
}

// Connect creates the team's Web API client and an unstarted RTM session
func (c SlackConnector) Connect(team types.Team) (slackbot.API, Session) {
	client := slackbot.NewClient(team.BotToken, c.Options)
	return client, slackbot.NewRTMSession(client)
}
