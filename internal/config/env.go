package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Credentials are third-party secrets read from the environment (optionally
// seeded from a .env file). They are never part of the config file so that
// hot reloads and diff logs cannot leak them.
type Credentials struct {
	PushoverToken string
	PushoverUser  string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
	// TwilioTo is the raw "&"-separated recipient list.
	TwilioTo string

	TelegramToken  string
	TelegramChatID int64

	TTSAPIKey string
}

// CredentialsFromEnv reads credentials using getenv (os.Getenv when nil).
func CredentialsFromEnv(getenv func(string) string) (Credentials, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	c := Credentials{
		PushoverToken: get("PUSHOVER_TOKEN"),
		PushoverUser:  get("PUSHOVER_USER"),
		TwilioSID:     get("TWILIO_SMS_ID"),
		TwilioToken:   get("TWILIO_SMS_TOKEN"),
		TwilioFrom:    get("TWILIO_SMS_FROM"),
		TwilioTo:      get("TWILIO_SMS_TO"),
		TelegramToken: get("TELEGRAM_BOT_TOKEN"),
		TTSAPIKey:     get("TTS_API_KEY"),
	}
	if raw := get("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("TELEGRAM_CHAT_ID: invalid chat id %q", raw)
		}
		c.TelegramChatID = id
	}
	return c, nil
}

// Missing lists the environment variables an enabled channel needs but lacks.
func (c Credentials) Missing(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	need := func(ok bool, name string) {
		if !ok {
			out = append(out, name)
		}
	}
	if cfg.Channels.Push.Enabled {
		switch strings.ToLower(cfg.Channels.Push.Backend) {
		case "telegram":
			need(c.TelegramToken != "", "TELEGRAM_BOT_TOKEN")
			need(c.TelegramChatID != 0, "TELEGRAM_CHAT_ID")
		default:
			need(c.PushoverToken != "", "PUSHOVER_TOKEN")
			need(c.PushoverUser != "", "PUSHOVER_USER")
		}
	}
	if cfg.Channels.SMS.Enabled {
		need(c.TwilioSID != "", "TWILIO_SMS_ID")
		need(c.TwilioToken != "", "TWILIO_SMS_TOKEN")
		need(c.TwilioFrom != "", "TWILIO_SMS_FROM")
		need(c.TwilioTo != "", "TWILIO_SMS_TO")
	}
	return out
}
