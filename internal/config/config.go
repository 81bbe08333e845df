// Package config loads chatd settings from an optional YAML file, a .env file
// and CHAT_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds the HS256 key shared with the account service. Empty
// disables token checks (dev only).
type AuthConfig struct {
	JWTKey string `mapstructure:"jwt_key"`
}

// MongoConfig selects the document store. Empty URI runs on the in-memory store.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig enables the presence cache when Addr is set.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

// NATSConfig enables message-created ingest when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
	Workers int    `mapstructure:"workers"`
}

type RealtimeConfig struct {
	TypingTimeout  time.Duration `mapstructure:"typing_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	EventRate      float64       `mapstructure:"event_rate"`
	EventBurst     int           `mapstructure:"event_burst"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.jwt_key", "")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "chat")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.presence_ttl", 24*time.Hour)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "chat.message.created")
	v.SetDefault("nats.queue", "chatd")
	v.SetDefault("nats.workers", 4)

	v.SetDefault("realtime.typing_timeout", 2*time.Second)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.event_rate", 20.0)
	v.SetDefault("realtime.event_burst", 40)
	v.SetDefault("realtime.max_message_size", 64<<10)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
}

// Load reads configPath (optional) and the given .env files (".env" when none
// are named). Missing .env files are ignored.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return errors.New("config: http.addr is required")
	case c.Realtime.TypingTimeout <= 0:
		return errors.New("config: realtime.typing_timeout must be positive")
	case c.Realtime.SendBuffer <= 0:
		return errors.New("config: realtime.send_buffer must be positive")
	case c.Realtime.EventRate <= 0 || c.Realtime.EventBurst <= 0:
		return errors.New("config: realtime.event_rate and event_burst must be positive")
	case c.Mongo.URI != "" && c.Mongo.Database == "":
		return errors.New("config: mongo.database is required with mongo.uri")
	}
	return nil
}
