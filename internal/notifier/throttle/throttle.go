// Package throttle implements the SMS cooldown state machine.
//
// The limiter is Active until Threshold sends are counted in the current
// cycle, then Paused for Pause. While Paused every attempt is dropped (not
// queued). Two uncoordinated timers zero the counter: the pause-expiry timer
// and an independent cycle timer that fires every Cycle regardless of state.
package throttle

import (
	"fmt"
	"sync"
	"time"

	"tablewatch/internal/clock"
	"tablewatch/internal/eventbus"
	logx "tablewatch/pkg/logx"
)

const (
	DefaultThreshold = 5
	DefaultPause     = 3 * time.Minute
	DefaultCycle     = 5 * time.Minute
)

type Config struct {
	Threshold int
	Pause     time.Duration
	Cycle     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Pause <= 0 {
		c.Pause = DefaultPause
	}
	if c.Cycle <= 0 {
		c.Cycle = DefaultCycle
	}
	return c
}

// NoticeFunc delivers an operator notice ("Pausing SMS ...") outside the gate.
type NoticeFunc func(body string)

// State is a point-in-time view of the limiter.
type State struct {
	SentInCycle int       `json:"sent_in_cycle"`
	Paused      bool      `json:"paused"`
	PausedUntil time.Time `json:"paused_until,omitempty"`
	Dropped     uint64    `json:"dropped"`
}

type Limiter struct {
	mu sync.Mutex

	cfg    Config
	clock  clock.Clock
	log    logx.Logger
	bus    eventbus.Bus
	notice NoticeFunc

	sent        int
	paused      bool
	pausedUntil time.Time
	dropped     uint64

	running    bool
	pauseTimer clock.Timer
	cycleTimer clock.Timer
}

type Option func(*Limiter)

func WithClock(c clock.Clock) Option    { return func(l *Limiter) { l.clock = c } }
func WithLogger(log logx.Logger) Option { return func(l *Limiter) { l.log = log } }
func WithBus(b eventbus.Bus) Option     { return func(l *Limiter) { l.bus = b } }
func WithNotice(fn NoticeFunc) Option   { return func(l *Limiter) { l.notice = fn } }

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{cfg: cfg.withDefaults()}
	for _, o := range opts {
		o(l)
	}
	if l.clock == nil {
		l.clock = clock.Real()
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if l.bus == nil {
		l.bus = eventbus.Nop()
	}
	return l
}

// SetNotice installs the notice sender after construction (the SMS channel
// owns both the limiter and the transport the notices go through).
func (l *Limiter) SetNotice(fn NoticeFunc) {
	l.mu.Lock()
	l.notice = fn
	l.mu.Unlock()
}

func (l *Limiter) Config() Config { return l.cfg }

// Start arms the cycle-reset timer. Start is idempotent.
func (l *Limiter) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.armCycleLocked()
}

// Stop cancels the cycle and pause timers. A pending pause is left in place;
// the limiter is not restarted after Stop in normal operation.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	if l.cycleTimer != nil {
		l.cycleTimer.Stop()
		l.cycleTimer = nil
	}
	if l.pauseTimer != nil {
		l.pauseTimer.Stop()
		l.pauseTimer = nil
	}
}

// Allow records one send attempt. It returns false while Paused. The attempt
// that brings the counter to the threshold is still allowed and flips the
// limiter into Paused.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	if l.paused {
		l.dropped++
		l.mu.Unlock()
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeSMSDropped})
		l.log.Debug("sms paused; dropping message")
		return false
	}
	l.sent++
	trip := l.sent >= l.cfg.Threshold
	var until time.Time
	if trip {
		l.paused = true
		until = l.clock.Now().Add(l.cfg.Pause)
		l.pausedUntil = until
		if l.running {
			l.pauseTimer = l.clock.AfterFunc(l.cfg.Pause, l.ExpirePause)
		}
	}
	sent := l.sent
	notice := l.notice
	l.mu.Unlock()

	if trip {
		l.log.Warn("sms threshold reached; pausing",
			logx.Int("sent", sent),
			logx.Duration("pause", l.cfg.Pause),
		)
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeSMSPaused, Data: State{SentInCycle: sent, Paused: true, PausedUntil: until}})
		if notice != nil {
			notice(fmt.Sprintf("Pausing SMS send for %s", humanMinutes(l.cfg.Pause)))
		}
	}
	return true
}

// ExpirePause ends a pause: it zeroes the counter, returns to Active and then
// sends the unpause notice. It is a no-op when not paused.
func (l *Limiter) ExpirePause() {
	l.mu.Lock()
	if !l.paused {
		l.mu.Unlock()
		return
	}
	l.paused = false
	l.pausedUntil = time.Time{}
	l.sent = 0
	l.pauseTimer = nil
	notice := l.notice
	l.mu.Unlock()

	l.log.Info("sms unpaused")
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeSMSResumed})
	if notice != nil {
		notice("Unpausing SMS")
	}
}

// ResetCycle zeroes the counter without touching the pause flag.
func (l *Limiter) ResetCycle() {
	l.mu.Lock()
	prev := l.sent
	l.sent = 0
	l.mu.Unlock()
	if prev > 0 {
		l.log.Debug("sms cycle reset", logx.Int("sent", prev))
	}
}

func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		SentInCycle: l.sent,
		Paused:      l.paused,
		PausedUntil: l.pausedUntil,
		Dropped:     l.dropped,
	}
}

func (l *Limiter) armCycleLocked() {
	l.cycleTimer = l.clock.AfterFunc(l.cfg.Cycle, func() {
		l.ResetCycle()
		l.mu.Lock()
		if l.running {
			l.armCycleLocked()
		}
		l.mu.Unlock()
	})
}

func humanMinutes(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
