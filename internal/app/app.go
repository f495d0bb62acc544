package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/internal/channels"
	"github.com/valentinpelus/alertdesk/internal/config"
	"github.com/valentinpelus/alertdesk/internal/events"
	"github.com/valentinpelus/alertdesk/internal/handler"
	"github.com/valentinpelus/alertdesk/internal/lifecycle"
	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/internal/processor"
	"github.com/valentinpelus/alertdesk/internal/server"
	"github.com/valentinpelus/alertdesk/internal/store"
	"github.com/valentinpelus/alertdesk/pkg/freshservice"
	"github.com/valentinpelus/alertdesk/pkg/slackbot"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take on exit
const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	Config               *config.Config
	Store                *store.TeamStore
	Registry             *prometheus.Registry
	Metrics              *metrics.Metrics
	Bus                  *events.Bus
	Resolver             *channels.Resolver
	Tickets              *freshservice.Client
	AlertProcessor       *processor.AlertProcessor
	InteractionProcessor *processor.InteractionProcessor
	Manager              *lifecycle.Manager
	Server               *server.Server

	redis *channels.RedisCache
}

// New initializes a new application with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	teamStore, err := store.NewTeamStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Channel cache: shared through Redis when configured, otherwise in memory
	var cache channels.Cache = channels.NewMemoryCache()
	var redisCache *channels.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = channels.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching channel lists in memory")
		} else {
			cache = redisCache
			log.Info("Caching channel lists in Redis")
		}
	}
	resolver := channels.NewResolver(cfg.AlertsChannel, cache)

	bus := events.NewBus(func(string) {
		m.AlertDropped(metrics.ReasonQueueFull)
	})

	style := slackbot.Style{
		Username:      cfg.BotUsername,
		IconEmoji:     cfg.BotIconEmoji,
		TextPlacement: cfg.AlertTextPlacement,
	}
	alertProcessor := processor.NewAlertProcessor(bus, resolver, style, m)

	hooks := lifecycle.Hooks{
		OnOpen: func(ctx context.Context, bot *lifecycle.Bot) {
			// warm the channel cache for this team
			if _, err := resolver.Refresh(ctx, bot.Team.ID, bot.API); err != nil {
				log.WithError(err).WithField("team_id", bot.Team.ID).Warn("Failed to list channels")
			}
			alertProcessor.Attach(ctx, bot.Team.ID, bot.Team.BotToken, bot.API)
		},
		OnClose: func(bot *lifecycle.Bot) {
			alertProcessor.Detach(bot.Team.ID, bot.Team.BotToken)
		},
	}
	connector := lifecycle.SlackConnector{Options: slackbot.Options{
		APIURL: cfg.SlackAPIURL,
		Debug:  cfg.LogLevel == "debug",
	}}
	manager := lifecycle.NewManager(connector, teamStore, hooks, m)

	tickets := freshservice.NewClient(cfg.TicketHost(), cfg.TicketSystemAPIKey, nil)
	interactionProcessor := processor.NewInteractionProcessor(manager, tickets, cfg.TicketRequesterEmail, cfg.ResetFieldMode, m)

	srv := server.New(cfg.Port, cfg.SlackSigningSecret, server.Handlers{
		Webhook:     handler.NewWebhookHandler(cfg.WebhookSecret, cfg.WebhookEncodings, bus, m),
		Interaction: handler.NewInteractionHandler(interactionProcessor),
		OAuth: handler.NewOAuthHandler(handler.OAuthConfig{
			ClientID:     cfg.SlackClientID,
			ClientSecret: cfg.SlackClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		}, teamStore, manager),
	}, registry)

	return &App{
		Config:               cfg,
		Store:                teamStore,
		Registry:             registry,
		Metrics:              m,
		Bus:                  bus,
		Resolver:             resolver,
		Tickets:              tickets,
		AlertProcessor:       alertProcessor,
		InteractionProcessor: interactionProcessor,
		Manager:              manager,
		Server:               srv,
		redis:                redisCache,
	}, nil
}

// Run starts the HTTP server and every stored bot, then blocks until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	if err := a.Store.EnsureSchema(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Start()
	}()

	if err := a.Manager.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		a.Manager.Shutdown()
		return err
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	a.Manager.Shutdown()
}

// Close releases the database and cache connections
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close resources: %v", errs)
	}
	return nil
}

// LogStartupInfo logs application startup information
func (a *App) LogStartupInfo() {
	log.Infof("Starting alertdesk on port %s", a.Config.Port)
	log.Infof("Alerts channel: #%s (text placement: %s, reset fields: %s)",
		a.Resolver.Name(), a.Config.AlertTextPlacement, a.Config.ResetFieldMode)
	log.Infof("Helpdesk: https://%s", a.Tickets.Host())

	if a.Config.SlackSigningSecret != "" {
		log.Info("Slack request verification: enabled")
	} else {
		log.Warn("Slack request verification: disabled (WARNING: anyone can press buttons)")
	}

	if a.redis != nil {
		log.Info("Channel cache: redis")
	} else {
		log.Info("Channel cache: memory")
	}
}
