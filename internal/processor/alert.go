package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/internal/channels"
	"github.com/valentinpelus/alertdesk/internal/events"
	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// AlertProcessor relays published alerts into each connected team's alerts channel
type AlertProcessor struct {
	bus      *events.Bus
	resolver *channels.Resolver
	style    slackbot.Style
	metrics  *metrics.Metrics

	mu     sync.Mutex
	relays map[string]relay // Key: team ID
}

// relay is a team's bus subscription and the bot token that attached it
type relay struct {
	owner string
	sub   *events.Subscription
}

// NewAlertProcessor creates a new alert processor
func NewAlertProcessor(bus *events.Bus, resolver *channels.Resolver, style slackbot.Style, m *metrics.Metrics) *AlertProcessor {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AlertProcessor{
		bus:      bus,
		resolver: resolver,
		style:    style,
		metrics:  m,
		relays:   make(map[string]relay),
	}
}

// Attach starts relaying alerts to a team on behalf of the bot identified by owner.
// A previous relay for the same team is replaced.
func (p *AlertProcessor) Attach(ctx context.Context, teamID, owner string, api slackbot.API) {
	sub := p.bus.Subscribe(teamID, events.DefaultBuffer)

	p.mu.Lock()
	p.relays[teamID] = relay{owner: owner, sub: sub}
	p.mu.Unlock()

	go p.relay(ctx, teamID, api, sub)
	log.WithField("team_id", teamID).Debug("Alert relay attached")
}

// Detach stops relaying alerts to a team. It does nothing when the team's relay
// was attached by another owner, such as the bot of a newer installation.
func (p *AlertProcessor) Detach(teamID, owner string) {
	p.mu.Lock()
	r, ok := p.relays[teamID]
	if !ok || r.owner != owner {
		p.mu.Unlock()
		return
	}
	delete(p.relays, teamID)
	p.mu.Unlock()

	r.sub.Cancel()
	log.WithField("team_id", teamID).Debug("Alert relay detached")
}

// Attached returns the number of teams currently receiving alerts
func (p *AlertProcessor) Attached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.relays)
}

func (p *AlertProcessor) relay(ctx context.Context, teamID string, api slackbot.API, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-sub.Alerts():
			if !ok {
				return
			}
			if err := p.ProcessAlert(ctx, teamID, api, alert); err != nil {
				log.WithError(err).WithField("team_id", teamID).Debug("Alert not relayed")
			}
		}
	}
}

// ProcessAlert posts one alert to the team's alerts channel.
// A failed alert is dropped: it is logged, counted and not retried.
func (p *AlertProcessor) ProcessAlert(ctx context.Context, teamID string, api slackbot.API, alert types.Alert) error {
	logger := log.WithFields(log.Fields{"team_id": teamID, "alert_id": alert.ID})

	channel, err := p.resolver.Resolve(ctx, teamID, api)
	if errors.Is(err, channels.ErrChannelNotFound) {
		logger.Warnf("No #%s channel, dropping alert", p.resolver.Name())
		p.metrics.AlertDropped(metrics.ReasonNoChannel)
		return err
	}
	if err != nil {
		logger.WithError(err).Error("Failed to look up alerts channel")
		p.metrics.AlertDropped(metrics.ReasonChannelLookup)
		return err
	}

	msg := slackbot.BuildAlertMessage(alert, p.style)
	if _, _, err := api.PostMessageContext(ctx, channel.ID, msg.Options()...); err != nil {
		logger.WithError(err).Error("Failed to post alert to Slack")
		p.metrics.AlertDropped(metrics.ReasonPostFailed)
		return fmt.Errorf("failed to post alert: %w", err)
	}

	p.metrics.AlertsPosted.Inc()
	logger.WithField("channel_id", channel.ID).Info("Alert posted to Slack")
	return nil
}
