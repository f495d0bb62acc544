package adapters

import (
	"testing"
)

func TestDetectAndConvert(t *testing.T) {
	tests := []struct {
		name         string
		contentType  string
		body         string
		wantEncoding string
		wantSecret   string
		wantText     string
		wantErr      bool
	}{
		{
			name:         "json",
			contentType:  "application/json",
			body:         `{"authentication":"s3cret","dattoalert":"Backup failed on SRV01"}`,
			wantEncoding: EncodingJSON,
			wantSecret:   "s3cret",
			wantText:     "Backup failed on SRV01",
		},
		{
			name:         "form",
			contentType:  "application/x-www-form-urlencoded; charset=utf-8",
			body:         "authentication=s3cret&dattoalert=Backup+failed+on+SRV01",
			wantEncoding: EncodingForm,
			wantSecret:   "s3cret",
			wantText:     "Backup failed on SRV01",
		},
		{
			name:         "form without content type",
			body:         "authentication=s3cret&dattoalert=hi",
			wantEncoding: EncodingForm,
			wantSecret:   "s3cret",
			wantText:     "hi",
		},
		{
			name:        "empty json object",
			contentType: "application/json",
			body:        `{}`,
			wantErr:     true,
		},
		{
			name:    "garbage",
			body:    "%zz",
			wantErr: true,
		},
	}

	r := NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, encoding, err := r.DetectAndConvert(tt.contentType, []byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectAndConvert() error = %v", err)
			}
			if encoding != tt.wantEncoding {
				t.Errorf("encoding = %q, want %q", encoding, tt.wantEncoding)
			}
			if adapter.Webhook.Authentication != tt.wantSecret {
				t.Errorf("Authentication = %q", adapter.Webhook.Authentication)
			}

			alert := adapter.ToAlert()
			if alert.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", alert.Text, tt.wantText)
			}
			if alert.ID == "" || alert.ReceivedAt.IsZero() {
				t.Errorf("alert not stamped: %+v", alert)
			}
			if adapter.GetSource() != "Datto" {
				t.Errorf("GetSource() = %q", adapter.GetSource())
			}
		})
	}
}

func TestRegistryDisabledEncoding(t *testing.T) {
	r := NewRegistry([]string{EncodingJSON})
	if r.IsEnabled(EncodingForm) {
		t.Fatal("form should be disabled")
	}
	if _, _, err := r.DetectAndConvert("application/x-www-form-urlencoded", []byte("authentication=a&dattoalert=b")); err == nil {
		t.Error("expected error with form disabled")
	}
}
