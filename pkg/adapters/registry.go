// Package adapters decodes inbound webhook bodies into alert adapters.
package adapters

import (
	"fmt"
	"mime"

	"github.com/valentinpelus/alertdesk/pkg/adapters/datto"
	"github.com/valentinpelus/alertdesk/pkg/types"
)

// Body encodings a webhook relay (Datto directly, or Zapier) may use
const (
	EncodingJSON = "json"
	EncodingForm = "form"
)

// Registry manages the enabled body encodings
type Registry struct {
	enabled map[string]bool
}

// NewRegistry creates a registry with the given encodings enabled.
// If none are specified, all are enabled.
func NewRegistry(encodings []string) *Registry {
	registry := &Registry{
		enabled: make(map[string]bool),
	}

	if len(encodings) == 0 {
		encodings = []string{EncodingJSON, EncodingForm}
	}
	for _, encoding := range encodings {
		registry.enabled[encoding] = true
	}

	return registry
}

// IsEnabled checks if an encoding is enabled
func (r *Registry) IsEnabled(encoding string) bool {
	return r.enabled[encoding]
}

// DetectAndConvert decodes a webhook body. The content type picks the first
// encoding to try; the others are tried after it.
// Returns the adapter, the encoding that matched, and any error.
func (r *Registry) DetectAndConvert(contentType string, body []byte) (*datto.Adapter, string, error) {
	order := []string{EncodingJSON, EncodingForm}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/x-www-form-urlencoded" {
		order = []string{EncodingForm, EncodingJSON}
	}

	var errors []string
	for _, encoding := range order {
		if !r.IsEnabled(encoding) {
			continue
		}
		webhook, err := decode(encoding, body)
		if err == nil {
			return &datto.Adapter{Webhook: webhook}, encoding, nil
		}
		errors = append(errors, fmt.Sprintf("%s: %v", encoding, err))
	}

	return nil, "", fmt.Errorf("failed to parse webhook from any enabled encoding: %v", errors)
}

func decode(encoding string, body []byte) (types.DattoWebhook, error) {
	if encoding == EncodingForm {
		return datto.FromForm(body)
	}
	return datto.FromJSON(body)
}
