// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host string `env:"CHATRELAY_HOST,default=0.0.0.0"`
	Port int    `env:"CHATRELAY_PORT,default=8080"`

	DatabasePath   string `env:"CHATRELAY_DATABASE_PATH,default=./chatrelay.db"`
	ConversationID string `env:"CHATRELAY_CONVERSATION_ID,default=lobby"`
	HistoryLimit   int    `env:"CHATRELAY_HISTORY_LIMIT,default=20"`

	RateLimitMaxCalls int           `env:"CHATRELAY_RATE_LIMIT_MAX_CALLS,default=5"`
	RateLimitWindow   time.Duration `env:"CHATRELAY_RATE_LIMIT_WINDOW,default=1s"`

	PingInterval time.Duration `env:"CHATRELAY_WS_PING_INTERVAL,default=30s"`
	ReadTimeout  time.Duration `env:"CHATRELAY_WS_READ_TIMEOUT,default=60s"`
	WriteTimeout time.Duration `env:"CHATRELAY_WS_WRITE_TIMEOUT,default=5s"`
	WriteBuffer  int           `env:"CHATRELAY_WS_WRITE_BUFFER,default=64"`

	ShutdownTimeout time.Duration `env:"CHATRELAY_SHUTDOWN_TIMEOUT,default=10s"`

	LogLevel   string `env:"CHATRELAY_LOG_LEVEL,default=info"`
	LogConsole bool   `env:"CHATRELAY_LOG_CONSOLE,default=true"`
}

// Load reads the environment (after best-effort .env loading) and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.ConversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.RateLimitMaxCalls <= 0 {
		return fmt.Errorf("rate limit max calls must be positive, got %d", c.RateLimitMaxCalls)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow)
	}
	if c.PingInterval <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.ReadTimeout <= c.PingInterval {
		return fmt.Errorf("read timeout (%s) must exceed ping interval (%s)", c.ReadTimeout, c.PingInterval)
	}
	if c.WriteBuffer <= 0 {
		return fmt.Errorf("write buffer must be positive, got %d", c.WriteBuffer)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
