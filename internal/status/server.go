// Package status serves a small read-only HTTP view of the running watcher:
// liveness, poll progress, SMS throttle state and recently dispatched openings.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/throttle"
	"tablewatch/internal/poller"
	"tablewatch/internal/runtime/supervisor"
	logx "tablewatch/pkg/logx"
)

const (
	DefaultAddr         = "127.0.0.1:8089"
	defaultRecentEvents = 20
	maxRecentEvents     = 300
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Pprof mounts net/http/pprof under /debug. A non-loopback Addr then
	// requires AllowInsecure.
	Pprof         bool
	AllowInsecure bool
}

// Sources are read on every request. Nil sources are omitted from the report.
type Sources struct {
	Poll     func() poller.Snapshot
	SMS      func() throttle.State
	History  func() []notifier.HistoryItem
	Channels func() []string
	Tasks    func() supervisor.Counters
}

type Report struct {
	StartedAt time.Time              `json:"started_at"`
	Uptime    string                 `json:"uptime"`
	Poll      *poller.Snapshot       `json:"poll,omitempty"`
	Channels  []string               `json:"channels"`
	SMS       *throttle.State        `json:"sms,omitempty"`
	Tasks     *supervisor.Counters   `json:"tasks,omitempty"`
	Recent    []notifier.HistoryItem `json:"recent"`
}

type Server struct {
	cfg     Config
	src     Sources
	log     logx.Logger
	started time.Time

	mu  sync.Mutex
	srv *http.Server
	sup *supervisor.Supervisor
	ln  net.Listener
}

func New(cfg Config, src Sources, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, src: src, log: log, started: time.Now()}
}

// Handler returns the router; Start serves it.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentEvents
	if raw := r.URL.Query().Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "recent must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentEvents)
	}
	writeJSON(w, s.report(limit))
}

func (s *Server) report(limit int) Report {
	rep := Report{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Channels:  []string{},
		Recent:    []notifier.HistoryItem{},
	}
	if s.src.Poll != nil {
		snap := s.src.Poll()
		rep.Poll = &snap
	}
	if s.src.SMS != nil {
		st := s.src.SMS()
		rep.SMS = &st
	}
	if s.src.Tasks != nil {
		c := s.src.Tasks()
		rep.Tasks = &c
	}
	if s.src.Channels != nil {
		if ch := s.src.Channels(); ch != nil {
			rep.Channels = ch
		}
	}
	if s.src.History != nil {
		h := s.src.History()
		if len(h) > limit {
			h = h[len(h)-limit:]
		}
		rep.Recent = append(rep.Recent, h...)
	}
	return rep
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Start binds the listener and serves in the background. Start is idempotent.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	if !isLoopbackAddr(s.cfg.Addr) {
		if s.cfg.Pprof && !s.cfg.AllowInsecure {
			s.log.Error("status server refused to start: pprof on non-loopback addr requires allow_insecure",
				logx.String("addr", s.cfg.Addr))
			return errors.New("status server refused to start: insecure pprof bind")
		}
		s.log.Warn("status server bound to a non-loopback address", logx.String("addr", s.cfg.Addr))
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	sup := supervisor.New(ctx, supervisor.WithLogger(s.log))
	sup.Go("http.serve", func(context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server stopped", logx.Err(err))
			return err
		}
		return nil
	})
	s.srv, s.sup, s.ln = srv, sup, ln
	s.log.Info("status server listening", logx.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup, s.ln = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	return err
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
