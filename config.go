package main

import (
	"errors"
	"fmt"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type ExplorerOptions struct {
	Timeout   time.Duration `long:"explorer-timeout" env:"EXPLORER_TIMEOUT" description:"Timeout for each explorer API request" default:"5s"`
	RetryMax  int           `long:"explorer-retry-max" env:"EXPLORER_RETRY_MAX" description:"Retries on explorer transport failures" default:"2"`
	RateLimit float64       `long:"explorer-rate-limit" env:"EXPLORER_RATE_LIMIT" description:"Explorer requests per second per network, 0 disables" default:"5"`
}

func (e ExplorerOptions) HasError() error {
	if e.Timeout <= 0 {
		return errors.New("explorer timeout must be positive")
	}
	if e.RetryMax < 0 {
		return errors.New("explorer retry max cannot be negative")
	}
	if e.RateLimit < 0 {
		return errors.New("explorer rate limit cannot be negative")
	}
	return nil
}

type Config struct {
	ListenAddr      string          `long:"listen" env:"LISTEN_ADDR" description:"Address the HTTP server listens on" default:":8080"`
	Explorer        ExplorerOptions `group:"Explorer options"`
	MaxProxyHops    int             `long:"max-proxy-hops" env:"MAX_PROXY_HOPS" description:"Maximum proxy implementations to follow" default:"3"`
	LogLevel        string          `long:"log-level" env:"LOG_LEVEL" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogFormat       string          `long:"log-format" env:"LOG_FORMAT" description:"Log output format" choice:"text" choice:"json" default:"text"`
	ShutdownTimeout time.Duration   `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" description:"Grace period for in-flight requests" default:"10s"`
}

func (c Config) HasError() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if err := c.Explorer.HasError(); err != nil {
		return err
	}
	if c.MaxProxyHops < 1 {
		return fmt.Errorf("max proxy hops must be at least 1, got %d", c.MaxProxyHops)
	}
	return nil
}

// ParseConfig reads flags from args, falling back to the environment and
// then to the defaults above.
func ParseConfig(args []string) (*Config, error) {
	var config Config
	parser := flags.NewParser(&config, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := config.HasError(); err != nil {
		return nil, err
	}
	return &config, nil
}
