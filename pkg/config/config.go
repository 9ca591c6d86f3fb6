package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FinFusion/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"finfusion"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"5s"`
	} `yaml:"redis"`
	Cache struct {
		MemoryMaxSize   int           `yaml:"memory_max_size" default:"10000" validate:"gt=0"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
		OpTimeout       time.Duration `yaml:"op_timeout" default:"500ms"`
	} `yaml:"cache"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"5432"`
		Database string `yaml:"database" default:"finfusion"`
		User     string `yaml:"user" default:"postgres"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode" default:"disable"`
		MaxConns int    `yaml:"max_conns" default:"10"`
		MinConns int    `yaml:"min_conns" default:"1"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finfusion"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		AlertsTopic    string   `yaml:"alerts_topic" default:"finfusion.alerts"`
		SnapshotsTopic string   `yaml:"snapshots_topic"`
		LogsTopic      string   `yaml:"logs_topic"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finfusion"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Fusion struct {
		Symbols        []string           `yaml:"symbols" validate:"min=1,dive,required"`
		Sectors        map[string]string  `yaml:"sectors"`
		Weights        map[string]float64 `yaml:"weights"`
		ScoreTTL       time.Duration      `yaml:"score_ttl" default:"300s" validate:"gt=0"`
		AdapterTimeout time.Duration      `yaml:"adapter_timeout" default:"800ms" validate:"gt=0"`
		Workers        int                `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	} `yaml:"fusion"`
	Alerts struct {
		Expiry          time.Duration `yaml:"expiry" default:"24h" validate:"gt=0"`
		PersistAttempts int           `yaml:"persist_attempts" default:"3" validate:"gte=1,lte=10"`
		PersistBackoff  time.Duration `yaml:"persist_backoff" default:"200ms"`
		PersistTimeout  time.Duration `yaml:"persist_timeout" default:"5s" validate:"gt=0"`
		PublishTimeout  time.Duration `yaml:"publish_timeout" default:"2s" validate:"gt=0"`
		Channel         string        `yaml:"channel" default:"alerts" validate:"required"`
		ActiveLimit     int           `yaml:"active_limit" default:"20"`
		HistoryLimit    int           `yaml:"history_limit" default:"50"`
	} `yaml:"alerts"`
	Market struct {
		Timezone    string             `yaml:"timezone" default:"Asia/Kolkata"`
		Open        string             `yaml:"open" default:"09:15"`
		Close       string             `yaml:"close" default:"15:30"`
		SnapshotTTL time.Duration      `yaml:"snapshot_ttl" default:"60s" validate:"gt=0"`
		OptionsTTL  time.Duration      `yaml:"options_ttl" default:"300s" validate:"gt=0"`
		BasePrices  map[string]float64 `yaml:"base_prices"`
	} `yaml:"market"`
	Scheduler struct {
		MarketSpec  string        `yaml:"market_spec" default:"* * * * *"`
		FusionSpec  string        `yaml:"fusion_spec" default:"*/5 * * * *"`
		AlertsSpec  string        `yaml:"alerts_spec" default:"*/10 * * * *"`
		CleanupSpec string        `yaml:"cleanup_spec" default:"0 * * * *"`
		RunOnStart  bool          `yaml:"run_on_start" default:"true"`
		JobTimeout  time.Duration `yaml:"job_timeout" default:"2m"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"5m"`
	} `yaml:"scheduler"`
	Sources struct {
		SentimentURL     string        `yaml:"sentiment_url" validate:"omitempty,url"`
		SentimentTimeout time.Duration `yaml:"sentiment_timeout" default:"700ms"`
		SentimentRetries int           `yaml:"sentiment_retries" default:"2"`
	} `yaml:"sources"`
	RateLimit struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		Limit   int64         `yaml:"limit" default:"100" validate:"gt=0"`
		Window  time.Duration `yaml:"window" default:"60s" validate:"gt=0"`
	} `yaml:"ratelimit"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse builds a Config from raw YAML.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDomainDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	c.normalizeWeights()
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Fusion.Symbols = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.Enabled = true
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = splitList(v)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	if _, err := ParseClock(c.Market.Open); err != nil {
		return fmt.Errorf("market.open: %w", err)
	}
	if _, err := ParseClock(c.Market.Close); err != nil {
		return fmt.Errorf("market.close: %w", err)
	}
	var sum float64
	for name, w := range c.Fusion.Weights {
		if !knownSource(name) {
			return fmt.Errorf("fusion.weights.%s is not a source, expected one of %v", name, models.AllSources)
		}
		if w < 0 {
			return fmt.Errorf("fusion.weights.%s must not be negative", name)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("fusion.weights must have a positive sum")
	}
	return nil
}

func knownSource(name string) bool {
	for _, s := range models.AllSources {
		if string(s) == name {
			return true
		}
	}
	return false
}

func (c *Config) applyDomainDefaults() {
	if len(c.Fusion.Symbols) == 0 {
		c.Fusion.Symbols = []string{"RELIANCE", "TCS", "HDFC", "INFY", "ITC"}
	}
	if len(c.Fusion.Weights) == 0 {
		c.Fusion.Weights = map[string]float64{
			"satellite": 0.2,
			"news":      0.2,
			"options":   0.2,
			"web":       0.2,
			"social":    0.2,
		}
	}
	if len(c.Fusion.Sectors) == 0 {
		c.Fusion.Sectors = map[string]string{
			"RELIANCE": "Oil & Gas",
			"TCS":      "IT",
			"HDFC":     "Banking",
			"INFY":     "IT",
			"ITC":      "FMCG",
		}
	}
	if len(c.Market.BasePrices) == 0 {
		c.Market.BasePrices = map[string]float64{
			"RELIANCE":  2650,
			"TCS":       3890,
			"HDFC":      1750,
			"INFY":      1450,
			"ITC":       450,
			"SBIN":      650,
			"ICICIBANK": 950,
			"LT":        3200,
		}
	}
}

func (c *Config) normalizeWeights() {
	var sum float64
	for _, w := range c.Fusion.Weights {
		sum += w
	}
	for k, w := range c.Fusion.Weights {
		c.Fusion.Weights[k] = w / sum
	}
}

// Location returns the market timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
