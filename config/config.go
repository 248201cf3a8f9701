package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Social   SocialConfig   `mapstructure:"social"`
	Events   EventsConfig   `mapstructure:"events"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     int      `mapstructure:"port"`
	Debug    bool     `mapstructure:"debug"`
	AdminKey string   `mapstructure:"admin_key"`
	AdminIPs []string `mapstructure:"admin_ips"` // addresses or CIDRs; empty allows all
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
	LogSQL       bool          `mapstructure:"log_sql"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string  `mapstructure:"jwt_secret"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// SocialConfig tunes the relationship engine.
type SocialConfig struct {
	TxTimeout           time.Duration `mapstructure:"tx_timeout"`
	DefaultPageSize     int           `mapstructure:"default_page_size"`
	MaxPageSize         int           `mapstructure:"max_page_size"`
	RequestTTL          time.Duration `mapstructure:"request_ttl"` // 0 disables expiry
	MemberCacheTTL      time.Duration `mapstructure:"member_cache_ttl"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"` // request expiry and notification cleanup
}

type EventsConfig struct {
	QueueSize         int           `mapstructure:"queue_size"`
	DeliveryAttempts  int           `mapstructure:"delivery_attempts"`
	DeliveryBackoff   time.Duration `mapstructure:"delivery_backoff"`
	EnqueueTimeout    time.Duration `mapstructure:"enqueue_timeout"` // wait on a full queue before inline delivery
	PubSubChannel     string        `mapstructure:"pubsub_channel"`
	NATSURL           string        `mapstructure:"nats_url"` // empty disables the NATS sink
	NATSSubjectPrefix string        `mapstructure:"nats_subject_prefix"`
	NotificationTTL   time.Duration `mapstructure:"notification_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/social.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.key_prefix", "social:")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("social.tx_timeout", "5s")
	v.SetDefault("social.default_page_size", 10)
	v.SetDefault("social.max_page_size", 100)
	v.SetDefault("social.request_ttl", "720h")
	v.SetDefault("social.member_cache_ttl", "30s")
	v.SetDefault("social.retry_attempts", 3)
	v.SetDefault("social.retry_backoff", "50ms")
	v.SetDefault("social.maintenance_interval", "10m")
	v.SetDefault("events.queue_size", 1024)
	v.SetDefault("events.delivery_attempts", 3)
	v.SetDefault("events.delivery_backoff", "200ms")
	v.SetDefault("events.enqueue_timeout", "1s")
	v.SetDefault("events.pubsub_channel", "social.events")
	v.SetDefault("events.nats_subject_prefix", "social")
	v.SetDefault("events.notification_ttl", "2160h")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
