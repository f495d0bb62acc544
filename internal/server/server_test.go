package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"

	"github.com/valentinpelus/alertdesk/internal/handler"
	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/internal/store"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

type nopPublisher struct{}

func (nopPublisher) Publish(types.Alert) int { return 0 }

type nopInteractor struct{}

func (nopInteractor) HandleInteraction(context.Context, slack.InteractionCallback) error { return nil }

type nopTeams struct{}

func (nopTeams) Get(context.Context, string) (types.Team, error) { return types.Team{}, store.ErrTeamNotFound }
func (nopTeams) Save(context.Context, types.Team) error { return nil }

type nopBots struct{}

func (nopBots) BotCreated(types.Team) error { return nil }

func newTestServer(t *testing.T, signingSecret string) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s := New("0", signingSecret, Handlers{
		Webhook:     handler.NewWebhookHandler("s3cret", nil, nopPublisher{}, m),
		Interaction: handler.NewInteractionHandler(nopInteractor{}),
		OAuth:       handler.NewOAuthHandler(handler.OAuthConfig{ClientID: "123.456"}, nopTeams{}, nopBots{}),
	}, reg)

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		method string
		path   string
		body   string
		want   int
		substr string
	}{
		{http.MethodGet, "/health", "", http.StatusOK, "healthy"},
		{http.MethodPost, "/datto", `{"authentication":"s3cret","dattoalert":"x"}`, http.StatusOK, "Thanks!"},
		{http.MethodGet, "/datto", "", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/metrics", "", http.StatusOK, "alertdesk_webhooks_received_total"},
		{http.MethodGet, "/", "", http.StatusOK, "Add to Slack"},
		{http.MethodGet, "/missing", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
		if tt.substr != "" && !strings.Contains(buf.String(), tt.substr) {
			t.Errorf("%s %s: body missing %q", tt.method, tt.path, tt.substr)
		}
	}
}

func TestSlackReceiveRequiresSignature(t *testing.T) {
	srv := newTestServer(t, "signing-secret")

	resp, err := srv.Client().Post(srv.URL+"/slack/receive", "application/x-www-form-urlencoded", strings.NewReader("payload={}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
