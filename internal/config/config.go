// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/activitysync/internal/engine"
	"github.com/roach88/activitysync/internal/transport"
)

// Config holds runtime settings for the sync engine.
type Config struct {
	ServiceURL     string        `env:"ACTIVITYSYNC_SERVICE_URL"`
	PollInterval   time.Duration `env:"ACTIVITYSYNC_POLL_INTERVAL"   envDefault:"5s"`
	RequestTimeout time.Duration `env:"ACTIVITYSYNC_REQUEST_TIMEOUT" envDefault:"10s"`
	HTTP2          bool          `env:"ACTIVITYSYNC_HTTP2"`
	Journal        string        `env:"ACTIVITYSYNC_JOURNAL"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the environment configuration with defaults applied.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the engine needs before it can start.
func (c Config) Validate() error {
	var errs []error
	if c.ServiceURL == "" {
		errs = append(errs, errors.New("service url is required"))
	} else if u, err := url.Parse(c.ServiceURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("service url %q must be an absolute http(s) url", c.ServiceURL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

// TransportOptions maps the configuration onto the HTTP client options.
// HTTP/2 against an http:// service uses cleartext prior knowledge.
func (c Config) TransportOptions() transport.Options {
	return transport.Options{
		Timeout:   c.RequestTimeout,
		HTTP2:     c.HTTP2,
		Cleartext: c.HTTP2 && strings.HasPrefix(c.ServiceURL, "http://"),
	}
}

// EngineOptions returns the engine options implied by the configuration.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithPollInterval(c.PollInterval),
		engine.WithRequestTimeout(c.RequestTimeout),
	}
}
