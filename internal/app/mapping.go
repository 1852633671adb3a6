package app

import (
	"strings"
	"time"

	"tablewatch/internal/config"
	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/audio"
	"tablewatch/internal/notifier/throttle"
	"tablewatch/internal/poller"
	"tablewatch/internal/provider"
	"tablewatch/internal/status"
	"tablewatch/internal/storage"
	"tablewatch/internal/venue"
	logx "tablewatch/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: busy,
	}, nil
}

func mapProviderConfig(cfg *config.Config) (provider.Config, error) {
	pc := cfg.Provider
	timeout, err := config.Duration("provider.timeout", pc.Timeout, 0)
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		BaseURL:    pc.BaseURL,
		Timeout:    timeout,
		UserAgent:  pc.UserAgent,
		RatePerSec: pc.RatePerSec,
		Burst:      pc.Burst,
	}, nil
}

func mapSearch(cfg *config.Config) venue.Search {
	return venue.Search{
		StartDate:      strings.TrimSpace(cfg.Search.StartDate),
		PartySize:      cfg.Search.PartySize,
		StayLengthDays: cfg.Search.StayLengthDays,
	}
}

func mapPollerConfig(cfg *config.Config) (poller.Config, error) {
	interval, err := cfg.Search.Interval()
	if err != nil {
		return poller.Config{}, err
	}
	timeout, err := config.Duration("search.check_timeout", cfg.Search.CheckTimeout, 0)
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{Interval: interval, CheckTimeout: timeout}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	ch := cfg.Channels
	timeout, err := config.Duration("channels.send_timeout", ch.SendTimeout, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup := map[string]time.Duration{}
	for name, raw := range map[string]string{
		notifier.ChannelPush: ch.Push.DedupWindow,
		notifier.ChannelSMS:  ch.SMS.DedupWindow,
	} {
		d, err := config.Duration("channels."+name+".dedup_window", raw, 0)
		if err != nil {
			return notifier.Config{}, err
		}
		if d > 0 {
			dedup[name] = d
		}
	}
	return notifier.Config{
		Enabled:     enabledChannels(cfg),
		Timeout:     timeout,
		DedupWindow: dedup,
		HistorySize: ch.HistorySize,
	}, nil
}

// enabledChannels maps the per-channel flags onto dispatcher channel names.
// Audio counts as enabled when either the alert sound or speech is on.
func enabledChannels(cfg *config.Config) map[string]bool {
	ch := cfg.Channels
	return map[string]bool{
		notifier.ChannelPush:  ch.Push.Enabled,
		notifier.ChannelSMS:   ch.SMS.Enabled,
		notifier.ChannelAudio: ch.Audio.SoundEnabled || ch.Audio.TTS.Enabled,
	}
}

func mapThrottleConfig(cfg *config.Config) (throttle.Config, error) {
	sc := cfg.Channels.SMS
	pause, err := config.Duration("channels.sms.pause", sc.Pause, 0)
	if err != nil {
		return throttle.Config{}, err
	}
	cycle, err := config.Duration("channels.sms.cycle", sc.Cycle, 0)
	if err != nil {
		return throttle.Config{}, err
	}
	return throttle.Config{Threshold: sc.Threshold, Pause: pause, Cycle: cycle}, nil
}

func mapAudioConfig(cfg *config.Config, loc *time.Location) (audio.Config, error) {
	ac := cfg.Channels.Audio
	pause, err := config.Duration("channels.audio.sound_pause", ac.SoundPause, audio.DefaultSoundPause)
	if err != nil {
		return audio.Config{}, err
	}
	cleanup, err := config.Duration("channels.audio.cleanup_delay", ac.CleanupDelay, audio.DefaultCleanupDelay)
	if err != nil {
		return audio.Config{}, err
	}
	return audio.Config{
		SoundEnabled: ac.SoundEnabled,
		SoundFile:    ac.SoundFile,
		SoundPause:   pause,
		TTSEnabled:   ac.TTS.Enabled,
		OverrideMute: ac.OverrideMute,
		CleanupDelay: cleanup,
		TempDir:      ac.TempDir,
		Loc:          loc,
	}, nil
}

func mapStatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Addr:          cfg.Status.Addr,
		Pprof:         cfg.Status.Pprof,
		AllowInsecure: cfg.Status.AllowInsecure,
	}
}

// validateMappings runs every mapper so a hot reload is rejected before commit
// when any of them would fail.
func validateMappings(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapProviderConfig(cfg); err != nil {
		return err
	}
	if _, err := mapPollerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapThrottleConfig(cfg); err != nil {
		return err
	}
	loc, err := cfg.Search.Location()
	if err != nil {
		return err
	}
	_, err = mapAudioConfig(cfg, loc)
	return err
}
