package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Server      ServerConfig  `yaml:"server"`
	Log         LogConfig     `yaml:"log"`
	Metrics     MetricsConfig `yaml:"metrics"`
	KIS         KISConfig     `yaml:"kis"`
	Themes      ThemesConfig  `yaml:"themes"`
	Push        PushConfig    `yaml:"push"`
	History     HistoryConfig `yaml:"history"`
	ClickHouse  CHConfig      `yaml:"clickhouse"`
	Kafka       KafkaConfig   `yaml:"kafka"`
	Redis       RedisConfig   `yaml:"redis"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	RefreshBurst    float64       `yaml:"refresh_burst" default:"3"`
	RefreshPerSec   float64       `yaml:"refresh_per_sec" default:"0.5"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// KISConfig configures the upstream brokerage feed and REST API.
type KISConfig struct {
	AppKey              string        `yaml:"app_key"`
	AppSecret           string        `yaml:"app_secret"`
	RestURL             string        `yaml:"rest_url" default:"https://openapi.koreainvestment.com:9443"`
	WebSocketURL        string        `yaml:"websocket_url" default:"ws://ops.koreainvestment.com:21000"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay" default:"5s"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout" default:"10s"`
	RequestInterval     time.Duration `yaml:"request_interval" default:"100ms"`
	TokenRefreshMargin  time.Duration `yaml:"token_refresh_margin" default:"10m"`
	MaxSubscriptions    int           `yaml:"max_subscriptions" default:"40"`
	RetryMax            int           `yaml:"retry_max" default:"3"`
	RetryDelay          time.Duration `yaml:"retry_delay" default:"300ms"`
	PingInterval        time.Duration `yaml:"ping_interval" default:"30s"`
	BootstrapWhenClosed bool          `yaml:"bootstrap_when_closed"`
}

type ThemesConfig struct {
	File          string        `yaml:"file"`
	TopN          int           `yaml:"top_n" default:"4"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl" default:"2s"`
	OnDemandLimit int           `yaml:"on_demand_limit" default:"10"`
	OnDemandTTL   time.Duration `yaml:"on_demand_ttl" default:"60s"`
}

type PushConfig struct {
	Channel      string        `yaml:"channel" default:"themes"`
	Interval     time.Duration `yaml:"interval" default:"1s"`
	ClientBuffer int           `yaml:"client_buffer" default:"16"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
}

type HistoryConfig struct {
	FineInterval   time.Duration `yaml:"fine_interval" default:"1m"`
	CoarseInterval time.Duration `yaml:"coarse_interval" default:"5m"`
	RingCapacity   int           `yaml:"ring_capacity" default:"390"`
	RetentionDays  int           `yaml:"retention_days" default:"30"`
	Table          string        `yaml:"table" default:"theme_history"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"10s"`
}

type CHConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"themepulse"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"themepulse.history"`
	RequiredAcks int           `yaml:"required_acks" default:"1"`
	Compression  string        `yaml:"compression" default:"snappy"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"500ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"themepulse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, then the YAML document, then validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("KIS_APP_KEY"); v != "" {
		c.KIS.AppKey = v
	}
	if v := getenv("KIS_APP_SECRET"); v != "" {
		c.KIS.AppSecret = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Themes.TopN <= 0 {
		return fmt.Errorf("themes.top_n must be positive, got %d", c.Themes.TopN)
	}
	if c.Push.Interval <= 0 {
		return fmt.Errorf("push.interval must be positive")
	}
	if c.History.RingCapacity <= 0 {
		return fmt.Errorf("history.ring_capacity must be positive")
	}
	if c.History.FineInterval <= 0 || c.History.CoarseInterval <= 0 {
		return fmt.Errorf("history intervals must be positive")
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be positive")
	}
	if c.KIS.ReconnectDelay <= 0 {
		return fmt.Errorf("kis.reconnect_delay must be positive")
	}
	if c.KIS.MaxSubscriptions <= 0 {
		return fmt.Errorf("kis.max_subscriptions must be positive")
	}
	return nil
}

// FeedEnabled reports whether upstream credentials are present.
func (c *Config) FeedEnabled() bool {
	return c.KIS.AppKey != "" && c.KIS.AppSecret != ""
}
