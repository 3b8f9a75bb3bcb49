package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Server      ServerConfig  `yaml:"server"`
	Logging     LoggingConfig `yaml:"logging"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Storage     StorageConfig `yaml:"storage"`
	ClickHouse  ClickHouse    `yaml:"clickhouse"`
	Redis       RedisConfig   `yaml:"redis"`
	Kafka       KafkaConfig   `yaml:"kafka"`
	Market      MarketConfig  `yaml:"market"`
	Seeds       SeedsConfig   `yaml:"seeds"`
	History     HistoryConfig `yaml:"history"`
	Refresh     RefreshConfig `yaml:"refresh"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
	// CollectorTopic enables aggregated error-log shipping to Kafka when set.
	CollectorTopic    string        `yaml:"collector_topic"`
	CollectorInterval time.Duration `yaml:"collector_interval" default:"30s"`
}

type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	Path          string        `yaml:"path" default:"/metrics"`
	SlowThreshold time.Duration `yaml:"slow_threshold" default:"2s"`
}

type StorageConfig struct {
	Driver       string        `yaml:"driver" default:"sqlite"` // sqlite | clickhouse
	QueryTimeout time.Duration `yaml:"query_timeout" default:"5s"`
	SQLitePath   string        `yaml:"sqlite_path" default:"data/marketsnap.db"`
	Tables       struct {
		Fundamentals string `yaml:"fundamentals" default:"fundamentals_cache"`
		Technicals   string `yaml:"technicals" default:"technicals_cache"`
		Positions    string `yaml:"positions" default:"portfolio_positions"`
	} `yaml:"tables"`
}

type ClickHouse struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketsnap"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"marketsnap"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"marketsnap-refresh"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
	} `yaml:"consumer"`
}

// MarketConfig carries the snapshot policy shared by every read and refresh path.
type MarketConfig struct {
	AllowedTimeframes       []string `yaml:"allowed_timeframes" default:"[\"1M\",\"3M\",\"6M\",\"1Y\"]"`
	DefaultTimeframe        string   `yaml:"default_timeframe" default:"6M"`
	Watchlist               []string `yaml:"watchlist"`
	FundamentalsStaleMonths int      `yaml:"fundamentals_stale_months" default:"3"`
	TechnicalsStaleDays     int      `yaml:"technicals_stale_days" default:"7"`
	WeakestLimit            int      `yaml:"weakest_limit" default:"5"`
	// AppendLockTTL bounds the duplicate-append guard on cache misses.
	AppendLockTTL time.Duration `yaml:"append_lock_ttl" default:"10s"`
}

type SeedsConfig struct {
	Fundamentals string `yaml:"fundamentals" default:"data/fundamentals.json"`
	Technicals   string `yaml:"technicals" default:"data/technicals.json"`
}

type HistoryConfig struct {
	BaseURL       string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
	Timeout       time.Duration `yaml:"timeout" default:"10s"`
	RatePerSecond float64       `yaml:"rate_per_second" default:"5"`
	Burst         int           `yaml:"burst" default:"5"`
	UserAgent     string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; MarketSnap/1.0)"`
}

type RefreshConfig struct {
	Dispatcher string        `yaml:"dispatcher" default:"local"` // local | redis | kafka
	Workers    int           `yaml:"workers" default:"5"`
	QueueSize  int           `yaml:"queue_size" default:"256"`
	RetryLimit int           `yaml:"retry_limit" default:"2"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	JobTimeout time.Duration `yaml:"job_timeout" default:"30s"`
	Topic      string        `yaml:"topic" default:"marketsnap.refresh"`
	// Schedule is a six-field cron spec (seconds first). Empty disables the scheduler.
	Schedule  string `yaml:"schedule"`
	RateLimit struct {
		Requests int           `yaml:"requests" default:"10"`
		Window   time.Duration `yaml:"window" default:"1m"`
	} `yaml:"rate_limit"`
}

// Load reads a YAML file over the struct defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML on top of the default values without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, applies environment overrides, then validates.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR: %w", err)
			}
			c.Redis.Port = p
		}
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("WATCHLIST"); v != "" {
		c.Market.Watchlist = splitList(v)
	}
	if v := getenv("DEFAULT_TIMEFRAME"); v != "" {
		c.Market.DefaultTimeframe = v
	}
	if v := getenv("REFRESH_DISPATCHER"); v != "" {
		c.Refresh.Dispatcher = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "clickhouse":
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'clickhouse', got '%s'", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
	}

	if len(c.Market.AllowedTimeframes) == 0 {
		return fmt.Errorf("market.allowed_timeframes cannot be empty")
	}
	found := false
	for _, tf := range c.Market.AllowedTimeframes {
		if tf == c.Market.DefaultTimeframe {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("market.default_timeframe %q is not in market.allowed_timeframes", c.Market.DefaultTimeframe)
	}
	if len(c.Market.Watchlist) == 0 {
		return fmt.Errorf("market.watchlist cannot be empty")
	}
	if c.Market.FundamentalsStaleMonths <= 0 || c.Market.TechnicalsStaleDays <= 0 {
		return fmt.Errorf("market staleness windows must be positive")
	}
	if c.Market.WeakestLimit <= 0 {
		return fmt.Errorf("market.weakest_limit must be positive")
	}

	switch c.Refresh.Dispatcher {
	case "local":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("refresh.dispatcher 'redis' requires redis.enabled")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("refresh.dispatcher 'kafka' requires kafka.brokers")
		}
	default:
		return fmt.Errorf("refresh.dispatcher must be 'local', 'redis' or 'kafka', got '%s'", c.Refresh.Dispatcher)
	}
	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("refresh.workers must be positive")
	}
	if c.Logging.CollectorTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.collector_topic requires kafka.brokers")
	}
	return nil
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
