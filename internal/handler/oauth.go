package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/valentinpelus/alertdesk/internal/store"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// AuthorizeURL is Slack's OAuth authorize endpoint
const AuthorizeURL = "https://slack.com/oauth/authorize"

// Scopes requested when a team installs the bot
var Scopes = []string{"bot", "channels:read", "users:read"}

// TeamRepository stores installations
type TeamRepository interface {
	Get(ctx context.Context, id string) (types.Team, error)
	Save(ctx context.Context, team types.Team) error
}

// BotStarter connects a newly installed team
type BotStarter interface {
	BotCreated(team types.Team) error
}

// OAuthConfig holds the Slack app credentials
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// HTTPClient is used for the code exchange; nil means http.DefaultClient
	HTTPClient *http.Client
}

// OAuthHandler completes the Slack app install
type OAuthHandler struct {
	config OAuthConfig
	teams  TeamRepository
	bots   BotStarter
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(cfg OAuthConfig, teams TeamRepository, bots BotStarter) *OAuthHandler {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &OAuthHandler{config: cfg, teams: teams, bots: bots}
}

// installKind tells a first install from a reinstall of a stored team
func (h *OAuthHandler) installKind(ctx context.Context, team types.Team) string {
	previous, err := h.teams.Get(ctx, team.ID)
	switch {
	case errors.Is(err, store.ErrTeamNotFound):
		return "first"
	case err != nil:
		log.WithError(err).WithField("team_id", team.ID).Warn("Failed to look up previous installation")
		return "unknown"
	case previous.BotToken != team.BotToken:
		return "token_rotated"
	default:
		return "reinstall"
	}
}

// InstallURL returns the "Add to Slack" link
func (h *OAuthHandler) InstallURL() string {
	q := url.Values{}
	q.Set("client_id", h.config.ClientID)
	q.Set("scope", strings.Join(Scopes, ","))
	if h.config.RedirectURL != "" {
		q.Set("redirect_uri", h.config.RedirectURL)
	}
	return AuthorizeURL + "?" + q.Encode()
}

// HandleOAuth exchanges the authorization code, stores the team and starts its bot
func (h *OAuthHandler) HandleOAuth(w http.ResponseWriter, r *http.Request) {
	if err := h.install(r.Context(), r.URL.Query().Get("code")); err != nil {
		log.WithError(err).Error("Slack install failed")
		http.Error(w, fmt.Sprintf("ERROR: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("Success!"))
}

func (h *OAuthHandler) install(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("missing code")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := slack.GetOAuthResponseContext(ctx, h.config.HTTPClient, h.config.ClientID, h.config.ClientSecret, code, h.config.RedirectURL)
	if err != nil {
		return fmt.Errorf("oauth exchange failed: %w", err)
	}

	team := types.Team{
		ID:        resp.TeamID,
		Name:      resp.TeamName,
		BotUserID: resp.Bot.BotUserID,
		BotToken:  resp.Bot.BotAccessToken,
		CreatedBy: resp.UserID,
	}
	kind := h.installKind(ctx, team)
	if err := h.teams.Save(ctx, team); err != nil {
		return err
	}

	log.WithFields(log.Fields{"team_id": team.ID, "team": team.Name, "install": kind}).Info("Team installed the bot")

	if !team.HasBot() {
		return nil
	}
	return h.bots.BotCreated(team)
}

var homepage = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>Datto alerts for Slack</title></head>
<body>
<h1>Datto alerts for Slack</h1>
<p>Posts Datto backup alerts to your alerts channel with buttons to reset them or turn them into helpdesk tickets.</p>
<a href="{{.}}"><img alt="Add to Slack" height="40" width="139" src="https://platform.slack-edge.com/img/add_to_slack.png"></a>
</body>
</html>
`))

// HandleHome serves the install page
func (h *OAuthHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homepage.Execute(w, h.InstallURL()); err != nil {
		log.WithError(err).Error("Failed to render homepage")
	}
}
