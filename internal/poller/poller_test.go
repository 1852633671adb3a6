package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tablewatch/internal/availability"
	"tablewatch/internal/eventbus"
	"tablewatch/internal/notifier"
	"tablewatch/internal/provider"
	"tablewatch/internal/storage"
	"tablewatch/internal/venue"
	logx "tablewatch/pkg/logx"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev notifier.Event) []notifier.Outcome {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	return nil
}

func (d *recordingDispatcher) venues() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, ev := range d.events {
		out = append(out, ev.Target.Name)
	}
	return out
}

type fetchFunc func(ctx context.Context, t venue.Target) ([]availability.Record, error)

func (f fetchFunc) Openings(ctx context.Context, t venue.Target) ([]availability.Record, error) {
	return f(ctx, t)
}

func providerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/restaurants":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"Name": "Alpha Grill", "ID": "A1", "DisneyUrl": "https://example.test/alpha"},
				{"Name": "Beta Bistro", "ID": "B2", "DisneyUrl": "https://example.test/beta"},
			})
		case strings.Contains(r.URL.Path, "|A1|"):
			_, _ = w.Write([]byte(`[{"Date":"2024-02-01","MealOpenings":{"Dinner":"2"}}]`))
		case strings.Contains(r.URL.Path, "|B2|"):
			_, _ = w.Write([]byte(`[{"Date":"2024-02-01","MealOpenings":{}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEndOnlyOpenVenueIsDispatched(t *testing.T) {
	srv := providerServer(t)
	client := provider.New(provider.Config{BaseURL: srv.URL})
	search := venue.Search{StartDate: "2024-01-29", PartySize: 2, StayLengthDays: 5}

	targets, missing, err := venue.ResolveFrom(context.Background(), client,
		[]string{"Alpha Grill", "Beta Bistro"}, client.BaseURL(), search, logx.Nop())
	if err != nil || len(missing) != 0 {
		t.Fatalf("resolve: targets=%v missing=%v err=%v", targets, missing, err)
	}

	logPath := filepath.Join(t.TempDir(), "openings.txt")
	store, err := storage.Open(context.Background(), storage.Config{Driver: "file", Path: logPath}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	disp := &recordingDispatcher{}
	p := New(Config{}, targets, client, disp, WithStore(store))
	if n := p.RunOnce(context.Background()); n != 1 {
		t.Fatalf("check number = %d", n)
	}

	if diff := cmp.Diff([]string{"Alpha Grill"}, disp.venues()); diff != "" {
		t.Fatalf("dispatched (-want +got):\n%s", diff)
	}
	ev := disp.events[0]
	if ev.Date != "2024-02-01" || ev.Availability.Get(availability.Dinner) != 2 || ev.Check != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Target.DeepLink != "https://example.test/alpha" {
		t.Fatalf("deep link = %q", ev.Target.DeepLink)
	}

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "Check 1 - Alpha Grill") || !strings.Contains(lines[0], "Dinner: 2") {
		t.Fatalf("log = %q", b)
	}
}

func TestEndToEndMissingVenueStillPolls(t *testing.T) {
	srv := providerServer(t)
	client := provider.New(provider.Config{BaseURL: srv.URL})

	targets, missing, err := venue.ResolveFrom(context.Background(), client,
		[]string{"Gamma Cafe", "Alpha Grill"}, client.BaseURL(), venue.Search{StartDate: "2024-01-29", PartySize: 2, StayLengthDays: 5}, logx.Nop())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"Gamma Cafe"}, missing); diff != "" {
		t.Fatalf("missing (-want +got):\n%s", diff)
	}
	if len(targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(targets))
	}

	disp := &recordingDispatcher{}
	p := New(Config{}, targets, client, disp)
	p.RunOnce(context.Background())
	if diff := cmp.Diff([]string{"Alpha Grill"}, disp.venues()); diff != "" {
		t.Fatalf("dispatched (-want +got):\n%s", diff)
	}
}

func TestFailingTargetsAreIsolated(t *testing.T) {
	targets := []venue.Target{{Name: "broken"}, {Name: "panics"}, {Name: "open"}}
	fetch := fetchFunc(func(_ context.Context, t venue.Target) ([]availability.Record, error) {
		switch t.Name {
		case "broken":
			return nil, errors.New("connection reset")
		case "panics":
			panic("bad payload")
		}
		return []availability.Record{
			{Date: "2024-02-01", Meals: availability.MealAvailability{}},
			{Date: "2024-02-02", Meals: availability.MealAvailability{availability.Lunch: 1}},
		}, nil
	})

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	disp := &recordingDispatcher{}
	p := New(Config{}, targets, fetch, disp, WithBus(bus))
	p.RunOnce(context.Background())

	if diff := cmp.Diff([]string{"open"}, disp.venues()); diff != "" {
		t.Fatalf("dispatched (-want +got):\n%s", diff)
	}
	if disp.events[0].Date != "2024-02-02" {
		t.Fatalf("first opening date = %q", disp.events[0].Date)
	}

	types := map[string]int{}
	for len(ch) > 0 {
		ev := <-ch
		types[ev.Type]++
	}
	if types[eventbus.TypeCheckFailed] != 1 || types[eventbus.TypeOpeningDetected] != 1 {
		t.Fatalf("events = %v", types)
	}

	snap := p.Snapshot()
	got := map[string]TargetStatus{}
	for _, st := range snap.Targets {
		got[st.Venue] = st
	}
	if got["broken"].Failures != 1 || got["broken"].LastError == "" {
		t.Fatalf("broken status = %+v", got["broken"])
	}
	if got["open"].Openings != 1 || got["open"].LastCheck != 1 {
		t.Fatalf("open status = %+v", got["open"])
	}
}

func TestCheckCounterIsGlobal(t *testing.T) {
	targets := []venue.Target{{Name: "a"}, {Name: "b"}}
	seen := map[uint64]int{}
	disp := &recordingDispatcher{}
	fetch := fetchFunc(func(context.Context, venue.Target) ([]availability.Record, error) {
		return []availability.Record{{Date: "2024-02-01", Meals: availability.MealAvailability{availability.Dinner: 1}}}, nil
	})
	p := New(Config{}, targets, fetch, disp)
	for i := 0; i < 3; i++ {
		p.RunOnce(context.Background())
	}
	for _, ev := range disp.events {
		seen[ev.Check]++
	}
	if diff := cmp.Diff(map[uint64]int{1: 2, 2: 2, 3: 2}, seen); diff != "" {
		t.Fatalf("checks per pass (-want +got):\n%s", diff)
	}
	if p.Checks() != 3 {
		t.Fatalf("checks = %d", p.Checks())
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	started := make(chan struct{}, 4)
	fetch := fetchFunc(func(context.Context, venue.Target) ([]availability.Record, error) {
		started <- struct{}{}
		return nil, nil
	})
	p := New(Config{Interval: time.Hour}, []venue.Target{{Name: "a"}}, fetch, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not run immediately")
	}
	if !p.Snapshot().Running {
		t.Fatal("snapshot should report running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Snapshot().Running {
		t.Fatal("snapshot should report stopped")
	}
	if p.Checks() != 1 {
		t.Fatalf("checks = %d, want 1", p.Checks())
	}
}

func TestStopCancelsInFlightChecks(t *testing.T) {
	entered := make(chan struct{})
	fetch := fetchFunc(func(ctx context.Context, _ venue.Target) ([]availability.Record, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := New(Config{Interval: time.Hour, CheckTimeout: time.Hour}, []venue.Target{{Name: "slow"}}, fetch, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
