// Package push renders openings as push notifications and hands them to a
// backend (Pushover or Telegram).
package push

import (
	"context"
	"errors"
	"time"

	"tablewatch/internal/availability"
	"tablewatch/internal/notifier"
)

// AlertGlyph prefixes every push title.
const AlertGlyph = "🔴 🍽️ "

// ErrNotConfigured is returned when a backend lacks credentials.
var ErrNotConfigured = errors.New("push backend not configured")

// Message is a rendered push notification.
type Message struct {
	Title string
	Body  string
	URL   string
}

// Sender delivers a rendered message to the single configured recipient.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Channel struct {
	sender Sender
	loc    *time.Location
}

// New returns the push channel. loc is the venue-local offset used to render dates.
func New(sender Sender, loc *time.Location) *Channel {
	if loc == nil {
		loc = time.UTC
	}
	return &Channel{sender: sender, loc: loc}
}

func (c *Channel) Name() string { return notifier.ChannelPush }

func (c *Channel) Send(ctx context.Context, ev notifier.Event) error {
	if c.sender == nil {
		return ErrNotConfigured
	}
	return c.sender.Send(ctx, Render(ev, c.loc))
}

// Render builds the push title and body for an opening.
func Render(ev notifier.Event, loc *time.Location) Message {
	body := availability.ShortDate(ev.Date, loc) + " - " + availability.CompactSummary(ev.Availability) +
		" \n\n" + ev.Target.DeepLink
	return Message{
		Title: AlertGlyph + ev.Target.Name,
		Body:  body,
		URL:   ev.Target.DeepLink,
	}
}
