package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that values are in range.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Redis.URL != "" && c.Database.URL == "" {
		return errors.New("redis.url requires database.url")
	}
	if c.Redis.CacheTTL < 0 {
		return errors.New("redis.cache_ttl must be >= 0")
	}
	if c.Kalshi.MaxRetries < 0 {
		return errors.New("kalshi.max_retries must be >= 0")
	}
	if c.Kalshi.RetryBackoff < 0 {
		return errors.New("kalshi.retry_backoff must be >= 0")
	}
	if c.Kalshi.ListingTimeout <= 0 {
		return errors.New("kalshi.listing_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= c.Kalshi.ListingTimeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed kalshi.listing_timeout (%s)",
			c.Server.WriteTimeout, c.Kalshi.ListingTimeout)
	}
	if c.Alerts.Interval < 0 {
		return errors.New("alerts.interval must be >= 0")
	}
	if c.Alerts.Concurrency < 1 {
		return errors.New("alerts.concurrency must be >= 1")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
}
