package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"tablewatch/internal/availability"
	"tablewatch/internal/clock"
	"tablewatch/internal/eventbus"
	logx "tablewatch/pkg/logx"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultHistorySize = 300
)

// Dispatcher is safe for concurrent use; concurrent target checks may dispatch
// at the same time.
type Dispatcher struct {
	mu       sync.Mutex
	cfg      Config
	channels []Channel

	log   logx.Logger
	bus   eventbus.Bus
	clock clock.Clock

	// dedup: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, channels ...Channel) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	d := &Dispatcher{
		log:      log,
		bus:      bus,
		clock:    clock.Real(),
		channels: channels,
		dedup:    map[string]time.Time{},
	}
	d.Apply(cfg)
	return d
}

// SetClock replaces the clock used for dedup windows and history timestamps.
func (d *Dispatcher) SetClock(c clock.Clock) {
	d.mu.Lock()
	d.clock = c
	d.mu.Unlock()
}

// Apply swaps the dispatch config at runtime (channel switches, dedup windows).
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	enabled := make(map[string]bool, len(cfg.Enabled))
	for k, v := range cfg.Enabled {
		enabled[k] = v
	}
	cfg.Enabled = enabled
	windows := make(map[string]time.Duration, len(cfg.DedupWindow))
	for k, v := range cfg.DedupWindow {
		if v > 0 {
			windows[k] = v
		}
	}
	cfg.DedupWindow = windows

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) SetEnabled(name string, on bool) {
	d.mu.Lock()
	d.cfg.Enabled[name] = on
	d.mu.Unlock()
}

// EnabledChannels lists the registered channels that are switched on, sorted.
func (d *Dispatcher) EnabledChannels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, ch := range d.channels {
		if d.cfg.Enabled[ch.Name()] {
			out = append(out, ch.Name())
		}
	}
	sort.Strings(out)
	return out
}

// Dispatch renders ev on every enabled channel concurrently and waits for all
// of them. Failures are logged and returned as outcomes for observability only.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) []Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	cfg := d.cfg
	channels := append([]Channel(nil), d.channels...)
	clk := d.clock
	d.mu.Unlock()

	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = clk.Now()
	}
	log := d.log.With(logx.String("venue", ev.Target.Name), logx.String("date", ev.Date))

	outcomes := make([]Outcome, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		name := ch.Name()
		if !cfg.Enabled[name] {
			outcomes[i] = Outcome{Channel: name, Err: ErrChannelDisabled}
			continue
		}
		if w := cfg.DedupWindow[name]; w > 0 && !d.dedupAllow(dedupKey(name, ev), w, clk.Now()) {
			outcomes[i] = Outcome{Channel: name, Err: ErrSuppressed}
			log.Debug("notification deduped", logx.String("channel", name))
			d.publish(eventbus.TypeNotifyDeduped, name, ev, nil)
			continue
		}

		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			outcomes[i] = d.send(ctx, cfg.Timeout, ch, ev, log)
		}(i, ch)
	}
	wg.Wait()

	d.appendHistory(ev, outcomes)
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, timeout time.Duration, ch Channel, ev Event, log logx.Logger) (out Outcome) {
	name := ch.Name()
	start := time.Now()
	out.Channel = name

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic in %s channel: %v", name, r)
		}
		out.Took = time.Since(start)
		switch {
		case out.Err == nil:
			log.Info("notification sent", logx.String("channel", name), logx.Duration("took", out.Took))
			d.publish(eventbus.TypeNotifySent, name, ev, nil)
		case errors.Is(out.Err, ErrSuppressed):
			log.Debug("notification suppressed", logx.String("channel", name), logx.Err(out.Err))
		default:
			log.Error("notification send failed", logx.String("channel", name), logx.Err(out.Err))
			d.publish(eventbus.TypeNotifyFailed, name, ev, out.Err)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out.Err = ch.Send(cctx, ev)
	return out
}

func (d *Dispatcher) publish(typ, channel string, ev Event, err error) {
	ne := NotificationEvent{Channel: channel, Venue: ev.Target.Name, Date: ev.Date, At: time.Now()}
	if err != nil {
		ne.Error = err.Error()
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: ne.At, Data: ne})
}

func (d *Dispatcher) Snapshot() []HistoryItem {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	return append([]HistoryItem(nil), d.history...)
}

func (d *Dispatcher) appendHistory(ev Event, outcomes []Outcome) {
	item := HistoryItem{
		At:      ev.DetectedAt,
		Venue:   ev.Target.Name,
		Date:    ev.Date,
		Summary: availability.CompactSummary(ev.Availability),
		Check:   ev.Check,
	}
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			item.Delivered = append(item.Delivered, o.Channel)
		case errors.Is(o.Err, ErrChannelDisabled), errors.Is(o.Err, ErrSuppressed):
		default:
			item.Failed = append(item.Failed, o.Channel)
		}
	}

	d.mu.Lock()
	max := d.cfg.HistorySize
	d.mu.Unlock()

	d.hmu.Lock()
	d.history = append(d.history, item)
	if len(d.history) > max {
		d.history = d.history[len(d.history)-max:]
	}
	d.hmu.Unlock()
}

func dedupKey(channel string, ev Event) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(channel))
	_, _ = h.Write([]byte("|" + ev.Target.Name + "|" + ev.Date + "|"))
	_, _ = h.Write([]byte(availability.FullSummary(ev.Availability, " ")))
	return fmt.Sprintf("%x", h.Sum64())
}

func (d *Dispatcher) dedupAllow(key string, window time.Duration, now time.Time) bool {
	d.dmu.Lock()
	defer d.dmu.Unlock()
	if until, ok := d.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range d.dedup {
		if !now.Before(until) {
			delete(d.dedup, k)
		}
	}
	d.dedup[key] = now.Add(window)
	return true
}
