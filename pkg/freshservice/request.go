// Package freshservice talks to the Freshservice helpdesk REST API.
package freshservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// placeholderPassword is sent as the basic-auth password; Freshservice only looks at the API key
const placeholderPassword = "dummy"

// Request describes an API call before it is turned into an *http.Request
type Request struct {
	URL      string
	Method   string
	Username string
	Password string
	Body     []byte
}

// BuildRequest builds the request descriptor for a Freshservice resource.
// Host and resource are not validated; a bad host yields a bad URL.
func BuildRequest(host, apiKey, method, resource string, payload any) (Request, error) {
	req := Request{
		URL:      fmt.Sprintf("https://%s/%s", host, strings.TrimPrefix(resource, "/")),
		Method:   method,
		Username: apiKey,
		Password: placeholderPassword,
	}

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Request{}, fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Body = body
	}

	return req, nil
}

// HTTPRequest converts the descriptor into an *http.Request
func (r Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(r.Username, r.Password)
	req.Header.Set("Accept", "application/json")
	if len(r.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
