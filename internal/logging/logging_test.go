package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	if err := Setup("debug", "json"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSON", log.StandardLogger().Formatter)
	}

	if err := Setup("info", ""); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, ok := log.StandardLogger().Formatter.(*log.TextFormatter); !ok {
		t.Errorf("formatter = %T, want text", log.StandardLogger().Formatter)
	}
}

func TestSetupInvalid(t *testing.T) {
	if err := Setup("loud", "text"); err == nil {
		t.Error("expected error for bad level")
	}
	if err := Setup("info", "xml"); err == nil {
		t.Error("expected error for bad format")
	}
}
