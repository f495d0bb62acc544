package processor

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/pkg/freshservice"
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
)

// ErrUnknownTeam is returned when a button press comes from a team with no live connection
var ErrUnknownTeam = errors.New("no connected bot for team")

// BotLookup finds the Web API client of a connected team
type BotLookup interface {
	BotForTeam(teamID string) (slackbot.API, bool)
}

// TicketCreator files helpdesk tickets
type TicketCreator interface {
	CreateTicket(ctx context.Context, ticket freshservice.Ticket) (*freshservice.CreatedTicket, error)
	TicketURL(displayID string) string
}

// InteractionProcessor routes alert button presses to the reset and ticket handlers
type InteractionProcessor struct {
	bots      BotLookup
	tickets   TicketCreator
	requester string
	fieldMode string
	metrics   *metrics.Metrics
}

// NewInteractionProcessor creates a new interaction processor
func NewInteractionProcessor(bots BotLookup, tickets TicketCreator, requester, fieldMode string, m *metrics.Metrics) *InteractionProcessor {
	if requester == "" {
		requester = freshservice.DefaultEmail
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &InteractionProcessor{
		bots:      bots,
		tickets:   tickets,
		requester: requester,
		fieldMode: fieldMode,
		metrics:   m,
	}
}

// HandleInteraction processes one interactive message callback.
// Unknown callbacks and button values are ignored.
func (p *InteractionProcessor) HandleInteraction(ctx context.Context, cb slack.InteractionCallback) error {
	if cb.Type != slack.InteractionTypeInteractionMessage || cb.CallbackID != slackbot.CallbackID {
		log.WithFields(log.Fields{"type": cb.Type, "callback_id": cb.CallbackID}).Debug("Ignoring interaction")
		return nil
	}
	if len(cb.ActionCallback.AttachmentActions) == 0 {
		return nil
	}
	value := cb.ActionCallback.AttachmentActions[0].Value

	api, ok := p.bots.BotForTeam(cb.Team.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, cb.Team.ID)
	}

	presser := p.presser(ctx, api, cb.User.ID)

	switch value {
	case slackbot.ActionReset:
		p.metrics.Interactions.WithLabelValues(value).Inc()
		return p.reset(ctx, api, cb, presser)
	case slackbot.ActionTicket:
		p.metrics.Interactions.WithLabelValues(value).Inc()
		return p.ticket(ctx, api, cb, presser)
	default:
		log.WithField("value", value).Debug("Ignoring unknown button value")
		return nil
	}
}

// presser returns the display name of the user who pressed the button, or "" when unknown
func (p *InteractionProcessor) presser(ctx context.Context, api slackbot.API, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := api.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to get user info")
		return ""
	}
	return slackbot.DisplayName(user)
}

func (p *InteractionProcessor) reset(ctx context.Context, api slackbot.API, cb slack.InteractionCallback, presser string) error {
	original := slackbot.FirstAttachment(cb.OriginalMessage)
	updated := slackbot.ResetAttachment(original, presser, p.fieldMode)

	if err := slackbot.ReplaceOriginal(ctx, api, cb, updated); err != nil {
		return err
	}

	log.WithFields(log.Fields{"team_id": cb.Team.ID, "user": presser}).Info("Alert reset")
	return nil
}
