package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCheckInterval  = 10 * time.Second
	DefaultVenueUTCOffset = "-06:00"
	DefaultStatusAddr     = "127.0.0.1:8089"
	DefaultOpeningsPath   = "./reservation-openings-log.txt"
	DefaultPushBackend    = "pushover"
)

// ApplyDefaults fills omitted fields that have a non-zero default.
// Parse calls it before returning, so Get() never sees the raw zero values.
func (c *Config) ApplyDefaults() {
	if c.Search.VenueUTCOffset == "" {
		c.Search.VenueUTCOffset = DefaultVenueUTCOffset
	}
	if c.Channels.Push.Backend == "" {
		c.Channels.Push.Backend = DefaultPushBackend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" && strings.EqualFold(c.Storage.Driver, "file") {
		c.Storage.Path = DefaultOpeningsPath
	}
	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}
}

// Interval resolves the poll interval from check_interval, then the legacy
// check_interval_ms, then the default.
func (s SearchConfig) Interval() (time.Duration, error) {
	if strings.TrimSpace(s.CheckInterval) != "" {
		d, err := Duration("search.check_interval", s.CheckInterval, 0)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("search.check_interval must be > 0")
		}
		return d, nil
	}
	if s.CheckIntervalMs < 0 {
		return 0, fmt.Errorf("search.check_interval_ms must be >= 0")
	}
	if s.CheckIntervalMs > 0 {
		return time.Duration(s.CheckIntervalMs) * time.Millisecond, nil
	}
	return DefaultCheckInterval, nil
}

// Location returns the fixed venue offset used to render dates.
func (s SearchConfig) Location() (*time.Location, error) {
	raw := strings.TrimSpace(s.VenueUTCOffset)
	if raw == "" {
		raw = DefaultVenueUTCOffset
	}
	t, err := time.Parse("-07:00", raw)
	if err != nil {
		return nil, fmt.Errorf("search.venue_utc_offset: invalid offset %q (want e.g. -06:00)", raw)
	}
	_, off := t.Zone()
	return time.FixedZone("UTC"+raw, off), nil
}
