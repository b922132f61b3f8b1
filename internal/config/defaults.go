package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 20 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultCacheTTL        = 30 * time.Second
	DefaultRestURL         = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultKalshiTimeout   = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 1 * time.Second
	DefaultListingTimeout  = 8 * time.Second
	DefaultAlertInterval   = 30 * time.Second
	DefaultAlertWorkers    = 8
	DefaultFetchTimeout    = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogMaxSizeMB    = 100
	DefaultLogMaxBackups   = 5
)

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}

	if c.Kalshi.RestURL == "" {
		c.Kalshi.RestURL = DefaultRestURL
	}
	if c.Kalshi.Timeout == 0 {
		c.Kalshi.Timeout = DefaultKalshiTimeout
	}
	if c.Kalshi.MaxRetries == 0 {
		c.Kalshi.MaxRetries = DefaultMaxRetries
	}
	if c.Kalshi.RetryBackoff == 0 {
		c.Kalshi.RetryBackoff = DefaultRetryBackoff
	}
	if c.Kalshi.ListingTimeout == 0 {
		c.Kalshi.ListingTimeout = DefaultListingTimeout
	}

	if c.Alerts.Interval == 0 {
		c.Alerts.Interval = DefaultAlertInterval
	}
	if c.Alerts.Concurrency == 0 {
		c.Alerts.Concurrency = DefaultAlertWorkers
	}
	if c.Alerts.FetchTimeout == 0 {
		c.Alerts.FetchTimeout = DefaultFetchTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
}
