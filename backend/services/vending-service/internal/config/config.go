package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "snackbox/backend/libs/config"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config defines vending service configuration.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"VENDING_HTTP_PORT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"VENDING_HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	Storage struct {
		Driver string `yaml:"driver" env:"VENDING_STORAGE_DRIVER"`
	} `yaml:"storage"`
	Database struct {
		DSN          string `yaml:"dsn" env:"VENDING_POSTGRES_DSN"`
		Migrate      bool   `yaml:"migrate" env:"VENDING_POSTGRES_MIGRATE"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"VENDING_POSTGRES_MAX_OPEN_CONNS"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"VENDING_REDIS_ADDR"`
		Password string `yaml:"password" env:"VENDING_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"VENDING_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"VENDING_REDIS_TTL"`
	} `yaml:"redis"`
	Session struct {
		TimeoutMinutes int           `yaml:"timeoutMinutes" env:"VENDING_SESSION_TIMEOUT_MINUTES"`
		CloseTimeout   time.Duration `yaml:"closeTimeout" env:"VENDING_SESSION_CLOSE_TIMEOUT"`
		RetryDelay     time.Duration `yaml:"retryDelay" env:"VENDING_SESSION_RETRY_DELAY"`
	} `yaml:"session"`
	Scanner struct {
		Port     string `yaml:"port" env:"VENDING_SCANNER_PORT"`
		BaudRate int    `yaml:"baudRate" env:"VENDING_SCANNER_BAUD_RATE"`
	} `yaml:"scanner"`
	WS struct {
		Origins      []string      `yaml:"origins" env:"VENDING_WS_ORIGINS"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"VENDING_WS_WRITE_TIMEOUT"`
		PingInterval time.Duration `yaml:"pingInterval" env:"VENDING_WS_PING_INTERVAL"`
	} `yaml:"ws"`
}

// Default returns configuration with defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Storage.Driver = StorageMemory
	cfg.Database.Migrate = true
	cfg.Redis.TTL = 86400
	cfg.Session.TimeoutMinutes = 5
	cfg.Session.CloseTimeout = 5 * time.Second
	cfg.Session.RetryDelay = 30 * time.Second
	cfg.Scanner.BaudRate = 9600
	cfg.WS.WriteTimeout = 10 * time.Second
	cfg.WS.PingInterval = 30 * time.Second
	return cfg
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks loaded values. It is called by the shared loader.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database dsn required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Session.TimeoutMinutes <= 0 {
		return errors.New("session timeout must be positive")
	}
	if c.Scanner.Port != "" && c.Scanner.BaudRate <= 0 {
		return errors.New("scanner baud rate must be positive")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SessionTimeout returns the inactivity timeout.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// ActiveSessionTTL returns ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// RedisEnabled reports whether the live session mirror is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
