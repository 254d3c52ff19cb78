package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Probe    ProbeConfig    `yaml:"probe"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Timing   TimingConfig   `yaml:"timing"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ProbeConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	AccountLabel string `yaml:"account_label"`
}

type ExchangeConfig struct {
	WSURL       string  `yaml:"ws_url"`
	Symbol      string  `yaml:"symbol"`
	Quantity    float64 `yaml:"quantity"`
	TimeInForce string  `yaml:"time_in_force"`
}

type TimingConfig struct {
	ReconnectDelayMs  int `yaml:"reconnect_delay_ms"`
	SettleDelayMs     int `yaml:"settle_delay_ms"`
	PingIntervalMs    int `yaml:"ping_interval_ms"`
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`
}

type DisplayConfig struct {
	Epsilon  float64 `yaml:"epsilon"`
	WindowMs int     `yaml:"window_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudwatchEnabled bool   `yaml:"cloudwatch_enabled"`
	Namespace         string `yaml:"namespace"`
	Region            string `yaml:"region"`
}

func (t TimingConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectDelayMs) * time.Millisecond
}

func (t TimingConfig) SettleDelay() time.Duration {
	return time.Duration(t.SettleDelayMs) * time.Millisecond
}

func (t TimingConfig) PingInterval() time.Duration {
	return time.Duration(t.PingIntervalMs) * time.Millisecond
}

func (t TimingConfig) ShutdownTimeout() time.Duration {
	return time.Duration(t.ShutdownTimeoutMs) * time.Millisecond
}

func (d DisplayConfig) Window() time.Duration {
	return time.Duration(d.WindowMs) * time.Millisecond
}

// Pair returns the traded pair in the exchange's wire format.
func (e ExchangeConfig) Pair() string {
	return strings.ToUpper(e.Symbol) + "_USDT"
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults match the exchange's documented expectations; the file
	// only needs to override what differs.
	config := Config{
		Exchange: ExchangeConfig{
			WSURL:       "wss://api.gateio.ws/ws/v4/",
			TimeInForce: "gtc",
		},
		Timing: TimingConfig{
			ReconnectDelayMs:  3000,
			SettleDelayMs:     10000,
			PingIntervalMs:    30000,
			ShutdownTimeoutMs: 10000,
		},
		Display: DisplayConfig{
			Epsilon:  0.001,
			WindowMs: 5000,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("GATEIO_WS_URL"); v != "" {
		config.Exchange.WSURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Metrics.Region = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Probe.Name == "" {
		return fmt.Errorf("probe.name is required")
	}
	if cfg.Probe.Version == "" {
		return fmt.Errorf("probe.version is required")
	}
	if cfg.Probe.AccountLabel == "" {
		cfg.Probe.AccountLabel = cfg.Probe.Name
	}

	if cfg.Exchange.WSURL == "" {
		return fmt.Errorf("exchange.ws_url is required")
	}
	if cfg.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if cfg.Exchange.Quantity <= 0 {
		return fmt.Errorf("exchange.quantity must be greater than 0")
	}
	switch strings.ToLower(cfg.Exchange.TimeInForce) {
	case "gtc", "ioc", "poc", "fok":
		cfg.Exchange.TimeInForce = strings.ToLower(cfg.Exchange.TimeInForce)
	default:
		return fmt.Errorf("exchange.time_in_force '%s' is invalid", cfg.Exchange.TimeInForce)
	}

	if cfg.Timing.ReconnectDelayMs <= 0 {
		return fmt.Errorf("timing.reconnect_delay_ms must be greater than 0")
	}
	if cfg.Timing.SettleDelayMs < 0 {
		return fmt.Errorf("timing.settle_delay_ms must not be negative")
	}
	if cfg.Timing.PingIntervalMs <= 0 {
		return fmt.Errorf("timing.ping_interval_ms must be greater than 0")
	}

	if cfg.Display.Epsilon <= 0 {
		return fmt.Errorf("display.epsilon must be greater than 0")
	}
	if cfg.Display.WindowMs <= 0 {
		return fmt.Errorf("display.window_ms must be greater than 0")
	}

	return nil
}
