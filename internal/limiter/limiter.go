// Package limiter implements fixed window attempt counters used to slow down
// credential guessing
package limiter

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLimited     = errors.New("rate limited")
	ErrUnavailable = errors.New("limiter backend unavailable")
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Limiter counts attempts per key. Allow records an attempt and returns
// ErrLimited once more than the configured number of attempts were made
// within the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

type Config struct {
	MaxAttempts int
	Window      time.Duration
	// Prefix namespaces the counters, e.g. "login"
	Prefix string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.Prefix == "" {
		c.Prefix = "rl"
	}

	return c
}
