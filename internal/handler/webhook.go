package handler

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/internal/metrics"
	"github.com/valentinpelus/alertdesk/pkg/adapters"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// maxWebhookBody caps how much of a webhook body is read
const maxWebhookBody = 1 << 20

// Publisher hands accepted alerts to the relays
type Publisher interface {
	Publish(alert types.Alert) int
}

// WebhookHandler handles incoming Datto webhooks
type WebhookHandler struct {
	registry  *adapters.Registry
	publisher Publisher
	secret    string
	metrics   *metrics.Metrics
}

// NewWebhookHandler creates a new webhook handler accepting the given body encodings
// (all when empty). Alerts are published only when the webhook's authentication field equals secret.
func NewWebhookHandler(secret string, encodings []string, publisher Publisher, m *metrics.Metrics) *WebhookHandler {
	if m == nil {
		m = metrics.New(nil)
	}
	return &WebhookHandler{
		registry:  adapters.NewRegistry(encodings),
		publisher: publisher,
		secret:    secret,
		metrics:   m,
	}
}

// HandleWebhook processes incoming webhook requests. The caller always gets 200 "Thanks!",
// whether or not the alert was accepted.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.WithError(err).Warn("Failed to read webhook body")
		h.thanks(w)
		return
	}

	adapter, encoding, err := h.registry.DetectAndConvert(r.Header.Get("Content-Type"), body)
	if err != nil {
		log.WithError(err).Warn("Failed to parse webhook")
		h.metrics.WebhooksReceived.WithLabelValues("false").Inc()
		h.thanks(w)
		return
	}

	authorized := h.authorized(adapter.Webhook.Authentication)
	h.metrics.WebhooksReceived.WithLabelValues(strconv.FormatBool(authorized)).Inc()

	switch {
	case !authorized:
		log.WithField("remote", r.RemoteAddr).Warn("Webhook with wrong or missing authentication")
	case adapter.Webhook.DattoAlert == "":
		log.Warn("Webhook without alert text, ignoring")
	default:
		alert := adapter.ToAlert()
		n := h.publisher.Publish(alert)
		log.WithFields(log.Fields{
			"alert_id": alert.ID,
			"source":   adapter.GetSource(),
			"encoding": encoding,
			"teams":    n,
		}).Info("Received alert")
	}

	h.thanks(w)
}

func (h *WebhookHandler) authorized(given string) bool {
	if h.secret == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}

func (h *WebhookHandler) thanks(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Thanks!"))
}

// HandleHealth handles health check requests
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
