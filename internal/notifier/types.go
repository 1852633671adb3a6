package notifier

import (
	"context"
	"errors"
	"time"

	"tablewatch/internal/availability"
	"tablewatch/internal/venue"
)

// Channel names used in config and logs.
const (
	ChannelPush  = "push"
	ChannelSMS   = "sms"
	ChannelAudio = "audio"
)

var (
	// ErrChannelDisabled marks a channel skipped because it is switched off.
	ErrChannelDisabled = errors.New("channel disabled")
	// ErrSuppressed marks a send dropped by a channel's own gate (dedup, SMS pause).
	ErrSuppressed = errors.New("suppressed")
)

// Event is one detected opening. It is built by the poll loop and consumed
// synchronously by Dispatch; it is not retained beyond history.
type Event struct {
	Target       venue.Target
	Date         string
	Availability availability.MealAvailability
	Check        uint64
	DetectedAt   time.Time
}

// Channel renders an Event on one delivery mechanism.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Config controls dispatch. Channels missing from Enabled are off.
type Config struct {
	Enabled     map[string]bool
	Timeout     time.Duration            // per-channel send bound; default 60s
	DedupWindow map[string]time.Duration // per-channel; 0 disables
	HistorySize int                      // default 300
}

// Outcome is the result of one channel for one event.
type Outcome struct {
	Channel string
	Err     error
	Took    time.Duration
}

type HistoryItem struct {
	At        time.Time `json:"at"`
	Venue     string    `json:"venue"`
	Date      string    `json:"date"`
	Summary   string    `json:"summary"`
	Check     uint64    `json:"check"`
	Delivered []string  `json:"delivered"`
	Failed    []string  `json:"failed,omitempty"`
}

// NotificationEvent is published on the event bus for every channel outcome.
type NotificationEvent struct {
	Channel string    `json:"channel"`
	Venue   string    `json:"venue"`
	Date    string    `json:"date"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
