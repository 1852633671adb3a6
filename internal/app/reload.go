package app

import (
	"reflect"
	"strings"

	"tablewatch/internal/config"
	logx "tablewatch/pkg/logx"
)

// applyConfig applies the live parts of a committed config: channel enable
// flags, dedup windows, send timeout, history size and logging. Everything
// else is logged as requiring a restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if !config.LiveSection(s) {
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
	if fixed := restartOnlyChannelFields(oldCfg, newCfg); len(fixed) > 0 {
		a.log.Warn("channel settings changed; restart required for changes to take effect", logx.Strings("fields", fixed))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	ncfg, err := mapNotifierConfig(newCfg)
	if err != nil {
		a.log.Warn("invalid channels config; keeping previous", logx.Err(err))
	} else {
		a.disp.Apply(ncfg)
		a.chans.audio.SetModes(newCfg.Channels.Audio.SoundEnabled, newCfg.Channels.Audio.TTS.Enabled)
		if !newCfg.Channels.Push.Enabled && !newCfg.Channels.SMS.Enabled {
			a.log.Warn("no notification targets set (push and sms are both disabled)")
		}
		if missing := a.creds.Missing(newCfg); len(missing) > 0 {
			a.log.Warn("enabled channels are missing credentials", logx.Strings("env", missing))
		}
	}

	a.log.Info("config reloaded", fields...)
}

// restartOnlyChannelFields lists channel settings that are baked into the
// channels at startup and therefore ignored by a hot reload.
func restartOnlyChannelFields(oldCfg, newCfg *config.Config) []string {
	o, n := oldCfg.Channels, newCfg.Channels
	var out []string
	if !strings.EqualFold(o.Push.Backend, n.Push.Backend) {
		out = append(out, "channels.push.backend")
	}
	if o.SMS.Threshold != n.SMS.Threshold || o.SMS.Pause != n.SMS.Pause || o.SMS.Cycle != n.SMS.Cycle {
		out = append(out, "channels.sms.throttle")
	}
	oa, na := o.Audio, n.Audio
	oa.SoundEnabled, na.SoundEnabled = false, false
	oa.TTS.Enabled, na.TTS.Enabled = false, false
	if !reflect.DeepEqual(oa, na) {
		out = append(out, "channels.audio")
	}
	return out
}
