package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "tablewatch/pkg/logx"
)

// Validate checks the config for startup and for every hot reload.
// A reload that fails validation is rejected and the previous config stays.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s := c.Search
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(s.StartDate)); err != nil {
		add(fmt.Errorf("search.start_date: want YYYY-MM-DD, got %q", s.StartDate))
	}
	if s.StayLengthDays < 1 {
		add(errors.New("search.stay_length_days must be >= 1"))
	}
	if s.PartySize < 1 {
		add(errors.New("search.party_size must be >= 1"))
	}
	if len(s.Restaurants) == 0 {
		add(errors.New("search.restaurants must list at least one venue"))
	}
	for i, name := range s.Restaurants {
		if strings.TrimSpace(name) == "" {
			add(fmt.Errorf("search.restaurants[%d] is empty", i))
		}
	}
	_, err := s.Interval()
	add(err)
	_, err = Duration("search.check_timeout", s.CheckTimeout, 0)
	add(err)
	_, err = s.Location()
	add(err)

	_, err = Duration("provider.timeout", c.Provider.Timeout, 0)
	add(err)
	if c.Provider.RatePerSec < 0 {
		add(errors.New("provider.rate_per_sec must be >= 0"))
	}

	ch := c.Channels
	switch strings.ToLower(strings.TrimSpace(ch.Push.Backend)) {
	case "", "pushover", "telegram":
	default:
		add(fmt.Errorf("channels.push.backend: unknown backend %q", ch.Push.Backend))
	}
	if ch.SMS.Threshold < 0 {
		add(errors.New("channels.sms.threshold must be >= 0"))
	}
	if ch.HistorySize < 0 {
		add(errors.New("channels.history_size must be >= 0"))
	}
	for path, raw := range map[string]string{
		"channels.send_timeout":        ch.SendTimeout,
		"channels.push.dedup_window":   ch.Push.DedupWindow,
		"channels.sms.pause":           ch.SMS.Pause,
		"channels.sms.cycle":           ch.SMS.Cycle,
		"channels.sms.dedup_window":    ch.SMS.DedupWindow,
		"channels.audio.sound_pause":   ch.Audio.SoundPause,
		"channels.audio.cleanup_delay": ch.Audio.CleanupDelay,
	} {
		_, err := Duration(path, raw, 0)
		add(err)
	}
	if ch.Audio.SoundEnabled && strings.TrimSpace(ch.Audio.SoundFile) == "" {
		add(errors.New("channels.audio.sound_file is required when sound_enabled is true"))
	}

	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "none":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add(errors.New("storage.path is required when storage.driver=sqlite"))
		}
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add(errors.New("storage.dsn is required when storage.driver=postgres"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	_, err = Duration("storage.busy_timeout", c.Storage.BusyTimeout, 0)
	add(err)

	if c.Status.Enabled && strings.TrimSpace(c.Status.Addr) == "" {
		add(errors.New("status.addr is required when status.enabled is true"))
	}
	return errors.Join(errs...)
}

// Duration reads a duration setting such as "90s" or "5m". A blank or zero
// value yields fallback; a negative one is rejected. field names the setting
// in errors.
func Duration(field, raw string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. 30s or 5m)", field, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: %s is negative", field, v)
	case d == 0:
		return fallback, nil
	}
	return d, nil
}
