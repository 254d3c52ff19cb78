package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `probe:
  name: "TestProbe"
  version: "1.0"
exchange:
  symbol: "ALCH"
  quantity: 50
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Probe.Name != "TestProbe" {
		t.Errorf("unexpected name: %s", cfg.Probe.Name)
	}
	if cfg.Probe.AccountLabel != "TestProbe" {
		t.Errorf("account label should default to name, got %s", cfg.Probe.AccountLabel)
	}
	if cfg.Exchange.Pair() != "ALCH_USDT" {
		t.Errorf("unexpected pair: %s", cfg.Exchange.Pair())
	}
	if cfg.Exchange.WSURL == "" {
		t.Error("ws_url default missing")
	}
	if cfg.Timing.ReconnectDelay() != 3*time.Second {
		t.Errorf("unexpected reconnect delay: %v", cfg.Timing.ReconnectDelay())
	}
	if cfg.Timing.SettleDelay() != 10*time.Second {
		t.Errorf("unexpected settle delay: %v", cfg.Timing.SettleDelay())
	}
	if cfg.Display.Window() != 5*time.Second {
		t.Errorf("unexpected display window: %v", cfg.Display.Window())
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "probe:\n  version: \"1.0\"\nexchange:\n  symbol: ALCH\n  quantity: 1\n"},
		{"missing symbol", "probe:\n  name: p\n  version: \"1.0\"\nexchange:\n  quantity: 1\n"},
		{"zero quantity", "probe:\n  name: p\n  version: \"1.0\"\nexchange:\n  symbol: ALCH\n  quantity: 0\n"},
		{"bad tif", "probe:\n  name: p\n  version: \"1.0\"\nexchange:\n  symbol: ALCH\n  quantity: 1\n  time_in_force: day\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := os.CreateTemp("", "cfg-*.yml")
			if err != nil {
				t.Fatalf("create temp file: %v", err)
			}
			defer os.Remove(f.Name())
			if _, err := f.WriteString(tc.content); err != nil {
				t.Fatalf("write temp file: %v", err)
			}
			f.Close()

			if _, err := LoadConfig(f.Name()); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
