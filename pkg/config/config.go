package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fertilis/quote-generator/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Store     StoreConfig     `mapstructure:"store"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Trace     TraceConfig     `mapstructure:"trace"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug | info | warn | error
	Encoding string `mapstructure:"encoding"` // json | console
}

// StoreConfig describes the tick store. Tickers wins over TickerCount when both are set.
type StoreConfig struct {
	Tickers      []string      `mapstructure:"tickers"`
	TickerCount  int           `mapstructure:"ticker_count"`
	TickerPrefix string        `mapstructure:"ticker_prefix"`
	Retention    time.Duration `mapstructure:"retention"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	InitialQuote int           `mapstructure:"initial_quote"`
	MinQuote     int           `mapstructure:"min_quote"`
	MaxQuote     int           `mapstructure:"max_quote"`
}

type GatewayConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

type ProcessorConfig struct {
	NumWorkers int           `mapstructure:"num_workers"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type TraceConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	PrettyPrint bool   `mapstructure:"pretty_print"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env values become real env vars, so AutomaticEnv below picks them up
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "store.tick_interval" -> STORE_TICK_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "store.tickers", "store.ticker_count", "store.ticker_prefix", "store.retention",
		"store.tick_interval", "store.initial_quote", "store.min_quote", "store.max_quote")
	bindEnv(v, "gateway.write_wait", "gateway.pong_wait", "gateway.ping_period", "gateway.max_message_size")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "processor.num_workers", "processor.ttl")
	bindEnv(v, "trace.enabled", "trace.service_name", "trace.pretty_print")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("store.tickers", []string{})
	v.SetDefault("store.ticker_count", 100)
	v.SetDefault("store.ticker_prefix", "ticker_")
	v.SetDefault("store.retention", 7*24*time.Hour)
	v.SetDefault("store.tick_interval", time.Second)
	v.SetDefault("store.initial_quote", 0)
	v.SetDefault("store.min_quote", int(models.MinQuote))
	v.SetDefault("store.max_quote", int(models.MaxQuote))

	v.SetDefault("gateway.write_wait", 5*time.Second)
	v.SetDefault("gateway.pong_wait", 60*time.Second)
	v.SetDefault("gateway.ping_period", 50*time.Second)
	v.SetDefault("gateway.max_message_size", 512*1024)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "quote_ticks")
	v.SetDefault("kafka.group_id", "quote-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.ttl", time.Hour)

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.service_name", "quote-generator")
	v.SetDefault("trace.pretty_print", false)
}

// Validate rejects configurations the store or the transports cannot run with
func (c *Config) Validate() error {
	s := c.Store
	if s.TickInterval <= 0 {
		return fmt.Errorf("store.tick_interval must be positive, got %s", s.TickInterval)
	}
	if s.Retention < s.TickInterval {
		return fmt.Errorf("store.retention (%s) must cover at least one tick_interval (%s)", s.Retention, s.TickInterval)
	}
	if s.MinQuote < int(models.MinQuote) || s.MaxQuote > int(models.MaxQuote) || s.MinQuote > s.MaxQuote {
		return fmt.Errorf("store quote range [%d, %d] must lie within [%d, %d]", s.MinQuote, s.MaxQuote, models.MinQuote, models.MaxQuote)
	}
	if s.InitialQuote < s.MinQuote || s.InitialQuote > s.MaxQuote {
		return fmt.Errorf("store.initial_quote %d outside [%d, %d]", s.InitialQuote, s.MinQuote, s.MaxQuote)
	}
	if len(c.TickerList()) == 0 {
		return fmt.Errorf("store needs at least one ticker")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	return nil
}

// TickerList returns the configured tickers, generating "<prefix>NN" names when no explicit list is set.
func (c *Config) TickerList() []string {
	if len(c.Store.Tickers) > 0 {
		return c.Store.Tickers
	}
	tickers := make([]string, c.Store.TickerCount)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("%s%02d", c.Store.TickerPrefix, i)
	}
	return tickers
}

// NewLogger builds a zap logger from the logger section
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
