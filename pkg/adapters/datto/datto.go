package datto

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

// Form field names, shared with the JSON keys
const (
	FieldAuthentication = "authentication"
	FieldAlert          = "dattoalert"
)

// FromJSON decodes a JSON webhook body
func FromJSON(body []byte) (types.DattoWebhook, error) {
	var webhook types.DattoWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		return types.DattoWebhook{}, err
	}
	if webhook.Authentication == "" && webhook.DattoAlert == "" {
		return types.DattoWebhook{}, fmt.Errorf("not a Datto webhook")
	}
	return webhook, nil
}

// FromForm decodes an application/x-www-form-urlencoded webhook body
func FromForm(body []byte) (types.DattoWebhook, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return types.DattoWebhook{}, err
	}
	webhook := types.DattoWebhook{
		Authentication: values.Get(FieldAuthentication),
		DattoAlert:     values.Get(FieldAlert),
	}
	if webhook.Authentication == "" && webhook.DattoAlert == "" {
		return types.DattoWebhook{}, fmt.Errorf("not a Datto webhook")
	}
	return webhook, nil
}

// Adapter converts a Datto webhook to an alert
type Adapter struct {
	Webhook types.DattoWebhook
}

// ToAlert returns the alert carried by the webhook with a fresh id.
// The alert text is passed through untouched.
func (a *Adapter) ToAlert() types.Alert {
	return types.Alert{
		ID:         uuid.NewString(),
		Text:       a.Webhook.DattoAlert,
		ReceivedAt: time.Now().UTC(),
	}
}

// GetSource returns the source identifier
func (a *Adapter) GetSource() string {
	return "Datto"
}
