package logger

import (
	"testing"
	"time"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestWithAccount(t *testing.T) {
	log := Logger()
	entry := log.WithAccount("GateIOAccount")
	if v, ok := entry.Entry.Data["account"]; !ok || v != "GateIOAccount" {
		t.Fatalf("account field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestLogLatencyEntryNoClient(t *testing.T) {
	// Without an initialised CloudWatch client this must only log.
	log := Logger()
	LogLatencyEntry(log.WithAccount("test"), "rid-1", 1, 5*time.Millisecond)
}
