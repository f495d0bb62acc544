package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// interactionTimeout bounds the work done for one button press
const interactionTimeout = time.Minute

// Interactor processes interactive message callbacks
type Interactor interface {
	HandleInteraction(ctx context.Context, cb slack.InteractionCallback) error
}

// InteractionHandler receives Slack button presses
type InteractionHandler struct {
	interactor Interactor
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(interactor Interactor) *InteractionHandler {
	return &InteractionHandler{interactor: interactor}
}

// HandleInteraction acks the callback right away and processes it asynchronously
func (h *InteractionHandler) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	payload := r.PostFormValue("payload")
	if payload == "" {
		http.Error(w, "Missing payload", http.StatusBadRequest)
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		log.WithError(err).Warn("Failed to parse interaction payload")
		http.Error(w, "Failed to parse payload", http.StatusBadRequest)
		return
	}

	log.WithFields(log.Fields{
		"team_id":     cb.Team.ID,
		"callback_id": cb.CallbackID,
		"type":        cb.Type,
	}).Debug("Received interaction")

	// Slack expects an answer within 3 seconds
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		defer cancel()
		if err := h.interactor.HandleInteraction(ctx, cb); err != nil {
			log.WithError(err).WithField("team_id", cb.Team.ID).Error("Failed to handle interaction")
		}
	}()

	w.WriteHeader(http.StatusOK)
}
