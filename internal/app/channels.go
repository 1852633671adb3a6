package app

import (
	"fmt"
	"strings"
	"time"

	"tablewatch/internal/clock"
	"tablewatch/internal/config"
	"tablewatch/internal/eventbus"
	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/audio"
	"tablewatch/internal/notifier/push"
	"tablewatch/internal/notifier/sms"
	"tablewatch/internal/notifier/throttle"
	logx "tablewatch/pkg/logx"
)

// channelSet holds every channel the dispatcher can route to. All three are
// built at startup regardless of their enable flags so a hot reload can turn
// them on without a restart.
type channelSet struct {
	push    *push.Channel
	sms     *sms.Channel
	audio   *audio.Channel
	limiter *throttle.Limiter
}

func (cs channelSet) list() []notifier.Channel {
	return []notifier.Channel{cs.push, cs.sms, cs.audio}
}

func buildChannels(cfg *config.Config, creds config.Credentials, clk clock.Clock, bus eventbus.Bus, log logx.Logger) (channelSet, error) {
	loc, err := cfg.Search.Location()
	if err != nil {
		return channelSet{}, err
	}

	pushSender, err := buildPushSender(cfg, creds)
	if err != nil {
		return channelSet{}, err
	}

	tc, err := mapThrottleConfig(cfg)
	if err != nil {
		return channelSet{}, err
	}
	limiter := throttle.New(tc,
		throttle.WithClock(clk),
		throttle.WithBus(bus),
		throttle.WithLogger(log.With(logx.String("comp", "sms.throttle"))),
	)
	twilio := sms.NewTwilio(sms.TwilioConfig{
		AccountSID: creds.TwilioSID,
		AuthToken:  creds.TwilioToken,
		From:       creds.TwilioFrom,
	})
	smsCh := sms.New(twilio, sms.ParseRecipients(creds.TwilioTo), limiter, log.With(logx.String("comp", "sms")))

	ac, err := mapAudioConfig(cfg, loc)
	if err != nil {
		return channelSet{}, err
	}
	audioLog := log.With(logx.String("comp", "audio"))
	tts := cfg.Channels.Audio.TTS
	// The synthesizer is wired even with speech off so a reload can enable it.
	opts := []audio.Option{
		audio.WithClock(clk),
		audio.WithLogger(audioLog),
		audio.WithSynthesizer(audio.NewHTTPSynthesizer(audio.TTSConfig{
			URL:    tts.URL,
			Model:  tts.Model,
			Voice:  tts.Voice,
			APIKey: creds.TTSAPIKey,
		})),
	}
	if ac.OverrideMute {
		opts = append(opts, audio.WithUnmuter(audio.ExecUnmuter{Command: commandOr(cfg.Channels.Audio.UnmuteCmd, audio.DefaultUnmuteCommand())}))
	}
	player := audio.ExecPlayer{Command: commandOr(cfg.Channels.Audio.PlayerCmd, audio.DefaultPlayerCommand()), Log: audioLog}

	return channelSet{
		push:    push.New(pushSender, loc),
		sms:     smsCh,
		audio:   audio.New(ac, player, opts...),
		limiter: limiter,
	}, nil
}

func buildPushSender(cfg *config.Config, creds config.Credentials) (push.Sender, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Channels.Push.Backend)); backend {
	case "", "pushover":
		return push.NewPushover(push.PushoverConfig{Token: creds.PushoverToken, User: creds.PushoverUser}), nil
	case "telegram":
		if creds.TelegramToken == "" {
			// nil sender: sends fail with push.ErrNotConfigured
			return nil, nil
		}
		return push.NewTelegram(push.TelegramConfig{
			Token:   creds.TelegramToken,
			ChatID:  creds.TelegramChatID,
			Timeout: 10 * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown channels.push.backend: %s", backend)
	}
}

func commandOr(cmd, def []string) []string {
	if len(cmd) > 0 {
		return cmd
	}
	return def
}
