package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

const secret = "8f742231b10e8888abcd99yyyzzz85a5"

func sign(t *testing.T, body string, ts time.Time, key string) *http.Request {
	t.Helper()
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte("v0:" + stamp + ":" + body))

	req := httptest.NewRequest(http.MethodPost, "/slack/receive", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", stamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func echo(got *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*got = string(b)
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthenticate(t *testing.T) {
	body := "payload=%7B%22type%22%3A%22interactive_message%22%7D"

	tests := []struct {
		name string
		req  func() *http.Request
		want int
	}{
		{
			name: "valid signature",
			req:  func() *http.Request { return sign(t, body, time.Now(), secret) },
			want: http.StatusOK,
		},
		{
			name: "wrong secret",
			req:  func() *http.Request { return sign(t, body, time.Now(), "other") },
			want: http.StatusUnauthorized,
		},
		{
			name: "stale timestamp",
			req:  func() *http.Request { return sign(t, body, time.Now().Add(-time.Hour), secret) },
			want: http.StatusUnauthorized,
		},
		{
			name: "no headers",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/slack/receive", strings.NewReader(body))
			},
			want: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := NewAuthMiddleware(secret).Authenticate(echo(&got))

			rec := httptest.NewRecorder()
			h(rec, tt.req())

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && got != body {
				t.Errorf("next handler saw body %q, want %q", got, body)
			}
		})
	}
}

func TestAuthenticateDisabled(t *testing.T) {
	var got string
	h := NewAuthMiddleware("").Authenticate(echo(&got))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/slack/receive", strings.NewReader("x=1")))

	if rec.Code != http.StatusOK || got != "x=1" {
		t.Errorf("got %d %q", rec.Code, got)
	}
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	h := LogRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	out := buf.String()
	for _, want := range []string{"method=GET", "path=/health", "status=418", "bytes=15"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
