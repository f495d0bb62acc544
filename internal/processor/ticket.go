package processor

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/valentinpelus/alertdesk/pkg/freshservice"
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
)

// ticket files a helpdesk ticket from the alert and links it on the message.
// When the ticket cannot be created the message is left as it was.
func (p *InteractionProcessor) ticket(ctx context.Context, api slackbot.API, cb slack.InteractionCallback, presser string) error {
	original := slackbot.FirstAttachment(cb.OriginalMessage)

	subject := original.Title
	if subject == "" {
		subject = cb.OriginalMessage.Text
	}
	description := original.Text
	if description == "" {
		description = cb.OriginalMessage.Text
	}

	created, err := p.tickets.CreateTicket(ctx, freshservice.NewTicket(subject, description, p.requester))
	if err != nil {
		// the message is left untouched
		p.metrics.TicketsFailed.Inc()
		log.WithError(err).WithField("team_id", cb.Team.ID).Error("Failed to create ticket")
		return nil
	}
	p.metrics.TicketsCreated.Inc()

	ticketURL := p.tickets.TicketURL(created.DisplayID)
	updated := slackbot.TicketAttachment(original, presser, ticketURL)
	if err := slackbot.ReplaceOriginal(ctx, api, cb, updated); err != nil {
		return err
	}

	log.WithFields(log.Fields{"team_id": cb.Team.ID, "ticket": created.DisplayID, "user": presser}).Info("Alert made into a ticket")
	return nil
}
