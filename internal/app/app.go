package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tablewatch/internal/clock"
	"tablewatch/internal/config"
	"tablewatch/internal/eventbus"
	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/throttle"
	"tablewatch/internal/poller"
	"tablewatch/internal/provider"
	"tablewatch/internal/runtime/supervisor"
	"tablewatch/internal/status"
	"tablewatch/internal/storage"
	"tablewatch/internal/venue"
	logx "tablewatch/pkg/logx"
)

const (
	watchRestartMin = 250 * time.Millisecond
	watchRestartMax = 5 * time.Second
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	clock clock.Clock
	creds config.Credentials

	prov   *provider.Client
	chans  channelSet
	disp   *notifier.Dispatcher
	status *status.Server

	getenv   func(string) string
	sdNotify func(state string) (bool, error)

	mu    sync.Mutex
	store storage.Store
	poll  *poller.Poller
}

type Option func(*App)

// WithGetenv replaces os.Getenv for credential lookup.
func WithGetenv(fn func(string) string) Option { return func(a *App) { a.getenv = fn } }
func WithClock(c clock.Clock) Option           { return func(a *App) { a.clock = c } }

// WithSdNotify replaces the systemd notify call.
func WithSdNotify(fn func(state string) (bool, error)) Option {
	return func(a *App) { a.sdNotify = fn }
}

// New loads and validates the config and builds every long-lived component.
// Nothing touches the network or the opening log until Start or Once.
func New(cfgPath string, opts ...Option) (*App, error) {
	a := &App{
		getenv:   os.Getenv,
		sdNotify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
	for _, o := range opts {
		o(a)
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}

	a.cfgm = config.NewManager(cfgPath)
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	a.logs = logSvc
	a.log = log.With(logx.String("comp", "app"))

	a.creds, err = config.CredentialsFromEnv(a.getenv)
	if err != nil {
		return nil, err
	}

	a.bus = eventbus.New()

	pc, err := mapProviderConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.prov = provider.New(pc)

	a.chans, err = buildChannels(cfg, a.creds, a.clock, a.bus, log)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.disp = notifier.New(ncfg, log.With(logx.String("comp", "notifier")), a.bus, a.chans.list()...)
	a.disp.SetClock(a.clock)

	if cfg.Status.Enabled {
		a.status = status.New(mapStatusConfig(cfg), status.Sources{
			Poll:     a.pollSnapshot,
			SMS:      a.chans.limiter.State,
			History:  a.disp.Snapshot,
			Channels: a.disp.EnabledChannels,
			Tasks:    a.taskCounters,
		}, log.With(logx.String("comp", "status")))
	}
	return a, nil
}

// Config returns the committed configuration.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Dispatcher is exposed for status and tests.
func (a *App) Dispatcher() *notifier.Dispatcher { return a.disp }

func (a *App) SMSState() throttle.State { return a.chans.limiter.State() }

func (a *App) Poller() *poller.Poller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poll
}

func (a *App) pollSnapshot() poller.Snapshot {
	if p := a.Poller(); p != nil {
		return p.Snapshot()
	}
	return poller.Snapshot{Targets: []poller.TargetStatus{}}
}

func (a *App) taskCounters() supervisor.Counters { return a.sup.Counters() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Venues fetches the provider directory and keeps listings whose name
// contains filter (case-insensitive). An empty filter keeps everything.
func (a *App) Venues(ctx context.Context, filter string) ([]venue.Listing, error) {
	listings, err := a.prov.Directory(ctx)
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]venue.Listing, 0, len(listings))
	for _, l := range listings {
		if filter == "" || strings.Contains(strings.ToLower(l.Name), filter) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// prepare opens the opening log, resolves targets and builds the poller.
// A directory fetch failure is fatal; zero resolved targets is not.
func (a *App) prepare(ctx context.Context) (*poller.Poller, error) {
	cfg := a.cfgm.Get()

	ch := cfg.Channels
	if !ch.Push.Enabled && !ch.SMS.Enabled {
		a.log.Warn("no notification targets set (push and sms are both disabled)")
	}
	if missing := a.creds.Missing(cfg); len(missing) > 0 {
		a.log.Warn("enabled channels are missing credentials", logx.Strings("env", missing))
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open opening log: %w", err)
	}

	targets, missing, err := venue.ResolveFrom(ctx, a.prov, cfg.Search.Restaurants, a.prov.BaseURL(), mapSearch(cfg),
		a.log.With(logx.String("comp", "venue")))
	switch {
	case errors.Is(err, venue.ErrNoTargets):
		a.log.Warn("no restaurants resolved; polling continues with nothing to check", logx.Strings("missing", missing))
	case err != nil:
		_ = store.Close()
		return nil, err
	}
	a.log.Info("targets resolved", logx.Int("targets", len(targets)), logx.Int("missing", len(missing)))

	pcfg, err := mapPollerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	p := poller.New(pcfg, targets, a.prov, a.disp,
		poller.WithLogger(a.log.With(logx.String("comp", "poller"))),
		poller.WithBus(a.bus),
		poller.WithClock(a.clock),
		poller.WithStore(store),
	)

	a.mu.Lock()
	a.store = store
	a.poll = p
	a.mu.Unlock()
	return p, nil
}

// Once resolves targets, runs a single pass, waits for every check and
// dispatch, and releases everything. It returns the pass number.
func (a *App) Once(ctx context.Context) (uint64, error) {
	p, err := a.prepare(ctx)
	if err != nil {
		a.closeLogs()
		return 0, err
	}
	a.chans.limiter.Start()
	n := p.RunOnce(ctx)
	a.chans.limiter.Stop()
	if err := a.chans.audio.Close(); err != nil {
		a.log.Warn("audio cleanup failed", logx.Err(err))
	}
	if err := a.closeStore(); err != nil {
		a.log.Warn("close opening log failed", logx.Err(err))
	}
	a.closeLogs()
	return n, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateMappings(cfg)
	})

	p, err := a.prepare(a.sup.Context())
	if err != nil {
		a.sup.Cancel()
		return err
	}

	a.chans.limiter.Start()

	if a.status != nil {
		if err := a.status.Start(a.sup.Context()); err != nil {
			a.log.Error("status server failed to start", logx.Err(err))
		}
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, watchRestartMin, watchRestartMax)

	if err := p.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	if ok, err := a.sdNotify(daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified", logx.String("state", "ready"))
	}
	a.log.Info("app started", logx.Strings("channels", a.disp.EnabledChannels()))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := a.sdNotify(daemon.SdNotifyStopping); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := a.stopStep(ctx)
	step("poller", 5*time.Second, func(c context.Context) error {
		if p := a.Poller(); p != nil {
			return p.Stop(c)
		}
		return nil
	})
	step("status", 2*time.Second, func(c context.Context) error {
		if a.status != nil {
			return a.status.Stop(c)
		}
		return nil
	})
	step("sms.throttle", time.Second, func(context.Context) error { a.chans.limiter.Stop(); return nil })
	step("audio", time.Second, func(context.Context) error { return a.chans.audio.Close() })
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })

	// Finally, wait for supervised goroutines (config watch/reload, event log).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	a.closeLogs()
	return nil
}

func (a *App) closeStore() error {
	a.mu.Lock()
	st := a.store
	a.store = nil
	a.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}

func (a *App) closeLogs() {
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
