package config

import (
	"reflect"
	"strings"

	logx "tablewatch/pkg/logx"
)

// Sections that can be applied without a restart.
var liveSections = map[string]bool{
	"channels": true,
	"logging":  true,
}

// LiveSection reports whether a changed section is applied on hot reload.
func LiveSection(name string) bool { return liveSections[name] }

// SummarizeConfigChange returns the changed top-level sections in a fixed
// order and safe structured fields for logging. Storage DSNs are never logged.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Search, newCfg.Search) {
		changed = append(changed, "search")
		attrs = append(attrs,
			logx.String("search.start_date", newCfg.Search.StartDate),
			logx.Int("search.restaurants", len(newCfg.Search.Restaurants)),
		)
	}
	if oldCfg.Provider != newCfg.Provider {
		changed = append(changed, "provider")
		attrs = append(attrs, logx.String("provider.base_url", newCfg.Provider.BaseURL))
	}
	if !reflect.DeepEqual(oldCfg.Channels, newCfg.Channels) {
		changed = append(changed, "channels")
		ch := newCfg.Channels
		attrs = append(attrs,
			logx.Bool("channels.push", ch.Push.Enabled),
			logx.Bool("channels.sms", ch.SMS.Enabled),
			logx.Bool("channels.audio.sound", ch.Audio.SoundEnabled),
			logx.Bool("channels.audio.tts", ch.Audio.TTS.Enabled),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.ToLower(newCfg.Storage.Driver)),
			logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
		)
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		attrs = append(attrs, logx.Bool("status.enabled", newCfg.Status.Enabled), logx.String("status.addr", newCfg.Status.Addr))
	}
	return changed, attrs
}
