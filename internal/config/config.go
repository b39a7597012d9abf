package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Client    ClientConfig    `mapstructure:"client" validate:"required"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" validate:"required"`
	Transport TransportConfig `mapstructure:"transport" validate:"required"`
	Feed      FeedConfig      `mapstructure:"feed" validate:"required"`
	Admin     AdminConfig     `mapstructure:"admin" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
}

type ClientConfig struct {
	// PageURL is where the client is notionally served from; the feed endpoint is derived from it.
	PageURL    string   `mapstructure:"page_url" validate:"required,url"`
	BasePath   string   `mapstructure:"base_path"`
	AuctionIDs []string `mapstructure:"auction_ids" validate:"dive,required"`
}

type ReconnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=0"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
}

type TransportConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"gt=0"`
	PingInterval     time.Duration `mapstructure:"ping_interval" validate:"gte=0"`
	PongWait         time.Duration `mapstructure:"pong_wait" validate:"gte=0"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

type FeedConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	BasePath       string        `mapstructure:"base_path"`
	ReportInterval time.Duration `mapstructure:"report_interval" validate:"gte=0"`
	BidTTL         time.Duration `mapstructure:"bid_ttl" validate:"gte=0"`
	HistoryLimit   int           `mapstructure:"history_limit" validate:"gte=1"`
}

type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// RedisConfig leaves Address empty to run the feed without Redis.
type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Channel  string `mapstructure:"channel" validate:"required"`
}

// MySQLConfig leaves DSN empty to run the feed without title lookups.
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.page_url", "http://localhost:8080/auction-web/")
	v.SetDefault("client.base_path", "")
	v.SetDefault("client.auction_ids", []string{})
	v.SetDefault("reconnect.max_attempts", 5)
	v.SetDefault("reconnect.base_delay", time.Second)
	v.SetDefault("transport.handshake_timeout", 10*time.Second)
	v.SetDefault("transport.ping_interval", 30*time.Second)
	v.SetDefault("transport.pong_wait", 60*time.Second)
	v.SetDefault("transport.write_timeout", 5*time.Second)
	v.SetDefault("feed.host", "0.0.0.0")
	v.SetDefault("feed.port", 8080)
	v.SetDefault("feed.base_path", "auction-web")
	v.SetDefault("feed.report_interval", time.Minute)
	v.SetDefault("feed.bid_ttl", 24*time.Hour)
	v.SetDefault("feed.history_limit", 20)
	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8081)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction_events")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"client.page_url":             "CLIENT_PAGE_URL",
		"client.base_path":            "CLIENT_BASE_PATH",
		"client.auction_ids":          "CLIENT_AUCTION_IDS",
		"reconnect.max_attempts":      "RECONNECT_MAX_ATTEMPTS",
		"reconnect.base_delay":        "RECONNECT_BASE_DELAY",
		"transport.handshake_timeout": "TRANSPORT_HANDSHAKE_TIMEOUT",
		"transport.ping_interval":     "TRANSPORT_PING_INTERVAL",
		"transport.pong_wait":         "TRANSPORT_PONG_WAIT",
		"transport.write_timeout":     "TRANSPORT_WRITE_TIMEOUT",
		"feed.host":                   "FEED_HOST",
		"feed.port":                   "FEED_PORT",
		"feed.base_path":              "FEED_BASE_PATH",
		"feed.report_interval":        "FEED_REPORT_INTERVAL",
		"feed.bid_ttl":                "FEED_BID_TTL",
		"feed.history_limit":          "FEED_HISTORY_LIMIT",
		"admin.host":                  "ADMIN_HOST",
		"admin.port":                  "ADMIN_PORT",
		"redis.address":               "REDIS_ADDRESS",
		"redis.password":              "REDIS_PASSWORD",
		"redis.db":                    "REDIS_DB",
		"redis.channel":               "REDIS_CHANNEL",
		"mysql.dsn":                   "MYSQL_DSN",
		"mysql.max_open_conns":        "MYSQL_MAX_OPEN_CONNS",
		"mysql.max_idle_conns":        "MYSQL_MAX_IDLE_CONNS",
		"mysql.conn_max_lifetime":     "MYSQL_CONN_MAX_LIFETIME",
		"log.level":                   "LOG_LEVEL",
		"log.format":                  "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Load reads defaults, an optional config.yaml and environment variables. When
// configPath is set that file must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/auction-monitor/")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is empty")
	}
	return Load(configPath)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Client: %s %v, Feed: %s:%d/%s, Admin: %s:%d, Redis: %s, MySQL configured: %t",
		c.Client.PageURL,
		c.Client.AuctionIDs,
		c.Feed.Host,
		c.Feed.Port,
		c.Feed.BasePath,
		c.Admin.Host,
		c.Admin.Port,
		c.Redis.Address,
		c.MySQL.DSN != "",
	)
}
