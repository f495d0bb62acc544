package middleware

import (
	"bytes"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// maxSignedBody caps how much of a signed request body is read
const maxSignedBody = 1 << 20

// AuthMiddleware verifies that requests were signed by Slack
type AuthMiddleware struct {
	signingSecret string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(signingSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		signingSecret: signingSecret,
	}
}

// Authenticate checks the X-Slack-Signature header against the request body.
// The body is restored for the next handler.
func (m *AuthMiddleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no signing secret is configured, skip verification
		if m.signingSecret == "" {
			next(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		r.Body.Close()
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		verifier, err := slack.NewSecretsVerifier(r.Header, m.signingSecret)
		if err != nil {
			log.WithError(err).Warn("Rejected unsigned Slack request")
			http.Error(w, "Unauthorized: Missing or stale signature", http.StatusUnauthorized)
			return
		}
		if _, err := verifier.Write(body); err != nil {
			http.Error(w, "Unauthorized: Invalid signature", http.StatusUnauthorized)
			return
		}
		if err := verifier.Ensure(); err != nil {
			log.WithError(err).Warn("Rejected Slack request with bad signature")
			http.Error(w, "Unauthorized: Invalid signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r)
	}
}
