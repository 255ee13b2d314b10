package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/fertilis/quote-generator/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Port != ":8080" {
		t.Errorf("Expected port :8080, got %s", cfg.App.Port)
	}
	if cfg.Store.TickInterval != time.Second {
		t.Errorf("Expected 1s tick interval, got %s", cfg.Store.TickInterval)
	}
	if cfg.Store.Retention != 7*24*time.Hour {
		t.Errorf("Expected 7 day retention, got %s", cfg.Store.Retention)
	}
	if cfg.Store.MaxQuote != 65535 || cfg.Store.MinQuote != 0 {
		t.Errorf("Expected full uint16 range, got [%d, %d]", cfg.Store.MinQuote, cfg.Store.MaxQuote)
	}
	if cfg.Kafka.Enabled {
		t.Error("Kafka sink should be disabled by default")
	}

	tickers := cfg.TickerList()
	if len(tickers) != 100 {
		t.Fatalf("Expected 100 generated tickers, got %d", len(tickers))
	}
	if tickers[0] != "ticker_00" || tickers[99] != "ticker_99" {
		t.Errorf("Unexpected ticker names: %s .. %s", tickers[0], tickers[99])
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("STORE_TICK_INTERVAL", "2s")
	t.Setenv("STORE_RETENTION", "1h")
	t.Setenv("STORE_TICKERS", "AAPL,MSFT")
	t.Setenv("STORE_INITIAL_QUOTE", "100")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Port != ":9090" {
		t.Errorf("Expected port :9090, got %s", cfg.App.Port)
	}
	if cfg.Store.TickInterval != 2*time.Second {
		t.Errorf("Expected 2s, got %s", cfg.Store.TickInterval)
	}
	if cfg.Store.InitialQuote != 100 {
		t.Errorf("Expected initial quote 100, got %d", cfg.Store.InitialQuote)
	}
	if got := strings.Join(cfg.TickerList(), ","); got != "AAPL,MSFT" {
		t.Errorf("Expected explicit tickers, got %s", got)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadConfig_InvalidRange(t *testing.T) {
	t.Setenv("STORE_MIN_QUOTE", "10")
	t.Setenv("STORE_MAX_QUOTE", "5")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("Expected error for min_quote > max_quote")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{Store: config.StoreConfig{
			TickerCount:  2,
			TickerPrefix: "t",
			Retention:    time.Minute,
			TickInterval: time.Second,
			InitialQuote: 5,
			MinQuote:     0,
			MaxQuote:     10,
		}}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	cases := map[string]func(c *config.Config){
		"zero interval":       func(c *config.Config) { c.Store.TickInterval = 0 },
		"retention too short": func(c *config.Config) { c.Store.Retention = 500 * time.Millisecond },
		"max above uint16":    func(c *config.Config) { c.Store.MaxQuote = 70000 },
		"initial outside":     func(c *config.Config) { c.Store.InitialQuote = 11 },
		"no tickers":          func(c *config.Config) { c.Store.TickerCount = 0 },
		"kafka no brokers":    func(c *config.Config) { c.Kafka.Enabled = true },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "debug", Encoding: "console"}); err != nil {
		t.Errorf("Expected console logger, got %v", err)
	}
	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}
