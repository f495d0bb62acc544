package freshservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// ticketsResource is the endpoint used to create helpdesk tickets
const ticketsResource = "/helpdesk/tickets.json"

// ErrUnexpectedResponse is returned when the API answers with something other than a created ticket
var ErrUnexpectedResponse = errors.New("unexpected Freshservice response")

// Ticket field values Freshservice expects for an alert-generated incident
const (
	PriorityLow    = 1
	StatusOpen     = 2
	SourcePortal   = 2
	TypeIncident   = "Incident"
	DefaultEmail   = "noreply@dattobackup.com"
	defaultTimeout = 30 * time.Second
)

// Ticket is the payload for a new helpdesk ticket
type Ticket struct {
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	Priority    int    `json:"priority"`
	Status      int    `json:"status"`
	Source      int    `json:"source"`
	TicketType  string `json:"ticket_type"`
}

// NewTicket returns an incident ticket with the fixed alert defaults
func NewTicket(subject, description, email string) Ticket {
	if email == "" {
		email = DefaultEmail
	}
	return Ticket{
		Description: description,
		Subject:     subject,
		Email:       email,
		Priority:    PriorityLow,
		Status:      StatusOpen,
		Source:      SourcePortal,
		TicketType:  TypeIncident,
	}
}

type ticketEnvelope struct {
	HelpdeskTicket Ticket `json:"helpdesk_ticket"`
}

// CreatedTicket is what we keep from a successful creation
type CreatedTicket struct {
	DisplayID  string
	StatusCode int
}

// Client is a minimal Freshservice API client
type Client struct {
	host   string
	apiKey string
	client *http.Client
}

// NewClient creates a new Freshservice client. A nil httpClient gets a 30s timeout client.
func NewClient(host, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		host:   host,
		apiKey: apiKey,
		client: httpClient,
	}
}

// Host returns the configured Freshservice host
func (c *Client) Host() string {
	return c.host
}

// TicketURL returns the agent-facing link for a ticket
func (c *Client) TicketURL(displayID string) string {
	return fmt.Sprintf("https://%s/helpdesk/tickets/%s", c.host, displayID)
}

// CreateTicket files a new ticket. No retry is attempted.
func (c *Client) CreateTicket(ctx context.Context, ticket Ticket) (*CreatedTicket, error) {
	desc, err := BuildRequest(c.host, c.apiKey, http.MethodPost, ticketsResource, ticketEnvelope{HelpdeskTicket: ticket})
	if err != nil {
		return nil, err
	}

	req, err := desc.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	log.WithField("subject", ticket.Subject).Info("Sending new ticket request to Freshservice")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send ticket request: %w", err)
	}
	defer resp.Body.Close()

	log.WithField("status_code", resp.StatusCode).Info("Got response from Freshservice")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	displayID, err := parseCreated(body)
	if err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}

	return &CreatedTicket{DisplayID: displayID, StatusCode: resp.StatusCode}, nil
}

// parseCreated checks the response shape: a JSON object with a truthy status
// and item.helpdesk_ticket.display_id.
func parseCreated(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return "", fmt.Errorf("%w: body is not a JSON object", ErrUnexpectedResponse)
	}

	if !truthy(obj["status"]) {
		return "", fmt.Errorf("%w: status is not set", ErrUnexpectedResponse)
	}

	item, _ := obj["item"].(map[string]any)
	ticket, _ := item["helpdesk_ticket"].(map[string]any)
	switch id := ticket["display_id"].(type) {
	case json.Number:
		return id.String(), nil
	case string:
		if id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: missing item.helpdesk_ticket.display_id", ErrUnexpectedResponse)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}
