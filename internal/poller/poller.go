// Package poller runs the fixed-interval check loop over the resolved targets.
//
// Every pass increments a process-wide check counter and starts one
// independent check per target. Checks never wait for each other and a pass
// never waits for the previous one; a slow or failing target only affects
// itself.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tablewatch/internal/availability"
	"tablewatch/internal/clock"
	"tablewatch/internal/eventbus"
	"tablewatch/internal/notifier"
	"tablewatch/internal/runtime/supervisor"
	"tablewatch/internal/storage"
	"tablewatch/internal/venue"
	logx "tablewatch/pkg/logx"
)

const (
	DefaultInterval     = 10 * time.Second
	DefaultCheckTimeout = 30 * time.Second
)

// Fetcher returns the provider's opening records for a target, in provider order.
type Fetcher interface {
	Openings(ctx context.Context, t venue.Target) ([]availability.Record, error)
}

// Dispatcher fans an opening out to notification channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notifier.Event) []notifier.Outcome
}

type Config struct {
	Interval     time.Duration
	CheckTimeout time.Duration
}

type Poller struct {
	cfg     Config
	targets []venue.Target
	fetch   Fetcher
	store   storage.Store
	disp    Dispatcher
	log     logx.Logger
	bus     eventbus.Bus
	clock   clock.Clock

	checks atomic.Uint64

	mu     sync.Mutex
	c      *cron.Cron
	sup    *supervisor.Supervisor
	status map[string]*TargetStatus
}

type Option func(*Poller)

func WithLogger(log logx.Logger) Option { return func(p *Poller) { p.log = log } }
func WithBus(b eventbus.Bus) Option     { return func(p *Poller) { p.bus = b } }
func WithClock(c clock.Clock) Option    { return func(p *Poller) { p.clock = c } }
func WithStore(s storage.Store) Option  { return func(p *Poller) { p.store = s } }

// New builds a poller over a fixed target list. The list is copied and never
// changes for the poller's lifetime.
func New(cfg Config, targets []venue.Target, fetch Fetcher, disp Dispatcher, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	p := &Poller{
		cfg:     cfg,
		targets: append([]venue.Target(nil), targets...),
		fetch:   fetch,
		disp:    disp,
		status:  map[string]*TargetStatus{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	if p.bus == nil {
		p.bus = eventbus.Nop()
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	for _, t := range p.targets {
		p.status[t.Name] = &TargetStatus{Venue: t.Name}
	}
	return p
}

// Start runs one pass immediately and then one pass every interval until Stop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.c != nil {
		p.mu.Unlock()
		return errors.New("poller already started")
	}
	sup := supervisor.New(ctx, supervisor.WithLogger(p.log))
	c := cron.New(cron.WithLogger(cronLogger{log: p.log}))
	c.Schedule(cron.Every(p.cfg.Interval), cron.FuncJob(func() { p.pass(sup) }))
	p.sup = sup
	p.c = c
	p.mu.Unlock()

	p.log.Info("poll loop started", logx.Int("targets", len(p.targets)), logx.Duration("interval", p.cfg.Interval))
	p.pass(sup)
	c.Start()
	return nil
}

// Stop halts the schedule, cancels in-flight checks and waits for them until ctx is done.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	c, sup := p.c, p.sup
	p.c, p.sup = nil, nil
	p.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	err := sup.Stop(ctx)
	p.log.Info("poll loop stopped", logx.Uint64("checks", p.checks.Load()))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunOnce runs a single pass and waits for every check to finish.
func (p *Poller) RunOnce(ctx context.Context) uint64 {
	sup := supervisor.New(ctx, supervisor.WithLogger(p.log))
	n := p.pass(sup)
	_ = sup.Wait(ctx)
	sup.Cancel()
	return n
}

// Checks returns the number of passes started so far.
func (p *Poller) Checks() uint64 { return p.checks.Load() }

func (p *Poller) pass(sup *supervisor.Supervisor) uint64 {
	if sup.Context().Err() != nil {
		return p.checks.Load()
	}
	n := p.checks.Add(1)
	p.log.Info("check #" + strconv.FormatUint(n, 10))
	for _, t := range p.targets {
		t := t
		sup.Go0("check:"+t.Name, func(ctx context.Context) { p.check(ctx, n, t) })
	}
	return n
}

func (p *Poller) check(ctx context.Context, n uint64, t venue.Target) {
	log := p.log.With(logx.String("venue", t.Name), logx.Uint64("check", n))
	log.Debug("checking " + t.Name)

	fctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	records, err := p.fetch.Openings(fctx, t)
	cancel()
	if err != nil {
		log.Warn("Error checking "+t.Name, logx.Err(err))
		p.record(t.Name, n, nil, err)
		p.bus.Publish(eventbus.Event{Type: eventbus.TypeCheckFailed, Time: p.clock.Now(), Data: CheckFailure{Venue: t.Name, Check: n, Error: err.Error()}})
		return
	}

	rec, ok := availability.FirstOpening(records)
	if !ok {
		p.record(t.Name, n, nil, nil)
		return
	}
	p.record(t.Name, n, &rec, nil)

	now := p.clock.Now()
	if p.store != nil {
		err := p.store.AppendOpening(ctx, storage.OpeningEntry{
			At:    now,
			Check: n,
			Venue: t.Name,
			Date:  rec.Date,
			Meals: rec.Meals,
		})
		if err != nil && !errors.Is(err, storage.ErrDisabled) {
			log.Warn("append opening log failed", logx.Err(err))
		}
	}
	log.Info("Found opening " + availability.LogLine(t.Name, rec.Date, rec.Meals))

	ev := notifier.Event{
		Target:       t,
		Date:         rec.Date,
		Availability: rec.Meals,
		Check:        n,
		DetectedAt:   now,
	}
	p.bus.Publish(eventbus.Event{Type: eventbus.TypeOpeningDetected, Time: now, Data: ev})
	if p.disp != nil {
		p.disp.Dispatch(ctx, ev)
	}
}

// CheckFailure is the payload of a check.failed event.
type CheckFailure struct {
	Venue string `json:"venue"`
	Check uint64 `json:"check"`
	Error string `json:"error"`
}

type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
