package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"auction-marketplace/utils"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is either "memory" or "sqlite"
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	// SecureCookie marks the session cookie Secure; enable behind HTTPS
	SecureCookie bool `mapstructure:"secure_cookie"`
}

type RedisConfig struct {
	// Address left empty disables event publishing
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type ReconcileConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CORSConfig struct {
	Origin string `mapstructure:"origin"`
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

var envBindings = map[string]string{
	"server.port":             "SERVER_PORT",
	"server.host":             "SERVER_HOST",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",
	"database.driver":         "DATABASE_DRIVER",
	"database.path":           "DATABASE_PATH",
	"uploads.dir":             "UPLOADS_DIR",
	"uploads.max_bytes":       "UPLOADS_MAX_BYTES",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.token_ttl":          "JWT_TOKEN_TTL",
	"auth.secure_cookie":      "AUTH_SECURE_COOKIE",
	"redis.address":           "REDIS_ADDRESS",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.channel":           "REDIS_CHANNEL",
	"reconcile.schedule":      "RECONCILE_SCHEDULE",
	"log.level":               "LOG_LEVEL",
	"cors.origin":             "CORS_ORIGIN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.path", "auction.db")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_bytes", 10<<20)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction_events")
	v.SetDefault("reconcile.schedule", "@every 10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origin", "*")
}

// Load reads an optional .env file, then config.yaml (if present) and the
// environment on top of the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.Debug("No .env file loaded", map[string]any{"error": err.Error()})
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}
	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		return errors.New("config: database.path is required for the sqlite driver")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("config: uploads.max_bytes must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// String returns a formatted representation of the config without secrets
func (c *Config) String() string {
	redis := c.Redis.Address
	if redis == "" {
		redis = "disabled"
	}
	return fmt.Sprintf(
		"Server: %s, Database: %s(%s), Uploads: %s, Redis: %s, Reconcile: %s",
		c.Addr(),
		c.Database.Driver,
		c.Database.Path,
		c.Uploads.Dir,
		redis,
		c.Reconcile.Schedule,
	)
}
