package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/internal/handler"
	"github.com/valentinpelus/alertdesk/internal/middleware"
)

// Handlers are the endpoints served by the HTTP server
type Handlers struct {
	Webhook     *handler.WebhookHandler
	Interaction *handler.InteractionHandler
	OAuth       *handler.OAuthHandler
}

// Server wraps the HTTP server
type Server struct {
	port           string
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	gatherer       prometheus.Gatherer
	httpServer     *http.Server
}

// New creates a new HTTP server. signingSecret verifies Slack callbacks; gatherer backs /metrics.
func New(port, signingSecret string, handlers Handlers, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		port:           port,
		handlers:       handlers,
		authMiddleware: middleware.NewAuthMiddleware(signingSecret),
		gatherer:       gatherer,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           middleware.LogRequests(s.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes configures HTTP routes
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/datto", s.handlers.Webhook.HandleWebhook)
	mux.HandleFunc("/slack/receive", s.authMiddleware.Authenticate(s.handlers.Interaction.HandleInteraction))
	mux.HandleFunc("/oauth", s.handlers.OAuth.HandleOAuth)
	mux.HandleFunc("/health", handler.HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handlers.OAuth.HandleHome)
	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Infof("HTTP server listening on :%s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
