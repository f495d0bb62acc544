// Package lifecycle keeps one real-time Slack connection per installed team.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// Session is a live connection to Slack for one team. The session reconnects
// on its own after a drop and reports it through Changes.
type Session interface {
	// Start blocks until the connection is open or the attempt failed
	Start(ctx context.Context) error
	// Changes reports drops and reopens; it is closed when the session has ended for good
	Changes() <-chan slackbot.State
	Stop() error
}

// Connector creates the Web API client and session for a team
type Connector interface {
	Connect(team types.Team) (slackbot.API, Session)
}

// TeamLister reads stored installations
type TeamLister interface {
	All(ctx context.Context) ([]types.Team, error)
}

// ErrShuttingDown is returned when a connection completes after Shutdown began
var ErrShuttingDown = errors.New("bot manager is shutting down")

// Bot is a tracked, connected team
type Bot struct {
	Team    types.Team
	API     slackbot.API
	session Session
	stopped chan struct{}
}

// Hooks run on connection state changes
type Hooks struct {
	OnOpen  func(ctx context.Context, bot *Bot)
	OnClose func(bot *Bot)
}

// Manager owns the active connection registry, keyed by bot token
type Manager struct {
	connector Connector
	teams     TeamLister
	hooks     Hooks
	metrics   *metrics.Metrics

	mu         sync.Mutex
	ctx        context.Context
	bots       map[string]*Bot
	connecting map[string]struct{}
	closing    bool
	wg         sync.WaitGroup
}

// NewManager creates a manager with an empty registry
func NewManager(connector Connector, teams TeamLister, hooks Hooks, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{
		connector:  connector,
		teams:      teams,
		hooks:      hooks,
		metrics:    m,
		ctx:        context.Background(),
		bots:       make(map[string]*Bot),
		connecting: make(map[string]struct{}),
	}
}

// Start connects every stored team that has a bot and waits for all attempts.
// Individual failures are only logged.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	teams, err := m.teams.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load teams: %w", err)
	}

	var wg sync.WaitGroup
	for _, team := range teams {
		if !team.HasBot() {
			continue
		}
		wg.Add(1)
		go func(team types.Team) {
			defer wg.Done()
			if err := m.connect(ctx, team); err != nil {
				log.WithError(err).WithField("team_id", team.ID).Error("Could not connect to Slack RTM")
			}
		}(team)
	}
	wg.Wait()

	log.Infof("Connected %d of %d stored teams", m.Len(), len(teams))
	return nil
}

// BotCreated connects a newly installed team unless its token is already tracked.
// A different token already tracked for the same team is retired once the new one connects.
func (m *Manager) BotCreated(team types.Team) error {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	return m.connect(ctx, team)
}

// BotForTeam returns the Web API client of a connected team
func (m *Manager) BotForTeam(teamID string) (slackbot.API, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bot := range m.bots {
		if bot.Team.ID == teamID {
			return bot.API, true
		}
	}
	return nil, false
}

// Tracked reports whether a token has a registered connection
func (m *Manager) Tracked(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bots[token]
	return ok
}

// Len returns the number of tracked connections
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bots)
}

// Shutdown stops every session and waits for the watchers to exit.
// Connections requested after Shutdown are refused.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closing = true
	bots := make([]*Bot, 0, len(m.bots))
	for token, bot := range m.bots {
		bots = append(bots, bot)
		delete(m.bots, token)
	}
	m.mu.Unlock()

	for _, bot := range bots {
		m.stop(bot)
	}
	m.metrics.ConnectionsActive.Set(0)
	m.wg.Wait()
}

// claim marks a token as connecting. It fails if the token is tracked, already
// connecting, or the manager is shutting down.
func (m *Manager) claim(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return false
	}
	if _, ok := m.bots[token]; ok {
		return false
	}
	if _, ok := m.connecting[token]; ok {
		return false
	}
	m.connecting[token] = struct{}{}
	return true
}

func (m *Manager) connect(ctx context.Context, team types.Team) error {
	if !m.claim(team.BotToken) {
		log.WithField("team_id", team.ID).Debug("Bot already online, skipping connect")
		return nil
	}

	api, session := m.connector.Connect(team)
	if err := session.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.connecting, team.BotToken)
		m.mu.Unlock()
		m.metrics.ConnectFailures.Inc()
		return fmt.Errorf("failed to start RTM for team %s: %w", team.ID, err)
	}

	bot := &Bot{Team: team, API: api, session: session, stopped: make(chan struct{})}

	m.mu.Lock()
	delete(m.connecting, team.BotToken)
	if m.closing {
		m.mu.Unlock()
		if err := session.Stop(); err != nil {
			log.WithError(err).WithField("team_id", team.ID).Warn("Failed to stop session")
		}
		return ErrShuttingDown
	}
	// a reinstall issues a new token; the team's previous connection is retired
	var stale []*Bot
	for token, other := range m.bots {
		if other.Team.ID == team.ID {
			stale = append(stale, other)
			delete(m.bots, token)
		}
	}
	m.bots[team.BotToken] = bot
	active := len(m.bots)
	m.wg.Add(1)
	m.mu.Unlock()

	for _, old := range stale {
		log.WithField("team_id", team.ID).Info("Retiring connection of the previous installation")
		m.stop(old)
		if m.hooks.OnClose != nil {
			m.hooks.OnClose(old)
		}
	}

	m.metrics.ConnectionsActive.Set(float64(active))
	log.WithField("team_id", team.ID).Info("The RTM api just connected")

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen(ctx, bot)
	}

	go m.watch(ctx, bot)

	return nil
}

// stop ends a bot's watcher and its session. The bot must already be untracked.
func (m *Manager) stop(bot *Bot) {
	close(bot.stopped)
	if err := bot.session.Stop(); err != nil {
		log.WithError(err).WithField("team_id", bot.Team.ID).Warn("Failed to stop session")
	}
}

// watch follows a session's state changes. The session reconnects by itself, so a drop
// detaches the bot and a reopen attaches it again; no second session is created.
func (m *Manager) watch(ctx context.Context, bot *Bot) {
	defer m.wg.Done()

	logger := log.WithField("team_id", bot.Team.ID)
	open := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-bot.stopped:
			return
		case state, ok := <-bot.session.Changes():
			if !ok {
				logger.Warn("The RTM api closed for good")
				if !m.untrack(bot) {
					return
				}
				if open && m.hooks.OnClose != nil {
					m.hooks.OnClose(bot)
				}
				return
			}

			switch state {
			case slackbot.Dropped:
				if !open {
					continue
				}
				open = false
				logger.Warn("The RTM api just closed")
				m.metrics.Reconnects.Inc()
				if m.hooks.OnClose != nil {
					m.hooks.OnClose(bot)
				}
			case slackbot.Reopened:
				if open {
					continue
				}
				open = true
				logger.Info("The RTM api just reconnected")
				if m.hooks.OnOpen != nil {
					m.hooks.OnOpen(ctx, bot)
				}
			}
		}
	}
}

// untrack removes bot from the registry if it is still the token's current entry
func (m *Manager) untrack(bot *Bot) bool {
	m.mu.Lock()
	current, ok := m.bots[bot.Team.BotToken]
	if !ok || current != bot {
		m.mu.Unlock()
		return false
	}
	delete(m.bots, bot.Team.BotToken)
	active := len(m.bots)
	m.mu.Unlock()

	m.metrics.ConnectionsActive.Set(float64(active))
	return true
}
