package poller

import (
	"sort"
	"time"

	"tablewatch/internal/availability"
)

// TargetStatus is the last observed result for one target.
type TargetStatus struct {
	Venue       string    `json:"venue"`
	LastCheck   uint64    `json:"last_check"`
	LastAt      time.Time `json:"last_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastOpening string    `json:"last_opening,omitempty"`
	Openings    uint64    `json:"openings"`
	Failures    uint64    `json:"failures"`
}

type Snapshot struct {
	Running  bool           `json:"running"`
	Checks   uint64         `json:"checks"`
	Interval time.Duration  `json:"interval"`
	Targets  []TargetStatus `json:"targets"`
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Snapshot{
		Running:  p.c != nil,
		Checks:   p.checks.Load(),
		Interval: p.cfg.Interval,
		Targets:  make([]TargetStatus, 0, len(p.status)),
	}
	for _, st := range p.status {
		out.Targets = append(out.Targets, *st)
	}
	sort.Slice(out.Targets, func(i, j int) bool { return out.Targets[i].Venue < out.Targets[j].Venue })
	return out
}

func (p *Poller) record(name string, n uint64, rec *availability.Record, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.status[name]
	if !ok {
		return
	}
	switch {
	case err != nil:
		st.Failures++
	case rec != nil:
		st.Openings++
		st.LastOpening = availability.LogLine(name, rec.Date, rec.Meals)
	}
	// Checks from an older pass may finish after a newer one.
	if n < st.LastCheck {
		return
	}
	st.LastCheck = n
	st.LastAt = p.clock.Now()
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
}
