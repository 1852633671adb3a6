package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/throttle"
	"tablewatch/internal/poller"
	"tablewatch/internal/runtime/supervisor"
	logx "tablewatch/pkg/logx"
)

func testSources(history int) Sources {
	items := make([]notifier.HistoryItem, 0, history)
	for i := 0; i < history; i++ {
		items = append(items, notifier.HistoryItem{Venue: "Space 220", Date: "2024-02-01", Check: uint64(i + 1)})
	}
	return Sources{
		Poll: func() poller.Snapshot {
			return poller.Snapshot{Running: true, Checks: 4, Targets: []poller.TargetStatus{{Venue: "Space 220", LastCheck: 4}}}
		},
		SMS:      func() throttle.State { return throttle.State{SentInCycle: 2} },
		History:  func() []notifier.HistoryItem { return items },
		Channels: func() []string { return []string{"push", "sms"} },
		Tasks:    func() supervisor.Counters { return supervisor.Counters{Active: 3, Started: 4} },
	}
}

func getStatus(t *testing.T, h http.Handler, target string) (int, Report) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var rep Report
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
			t.Fatalf("decode: %v\n%s", err, rr.Body.String())
		}
	}
	return rr.Code, rep
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Sources{}, logx.Nop())
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
}

func TestStatusReport(t *testing.T) {
	t.Parallel()
	s := New(Config{}, testSources(3), logx.Nop())
	code, rep := getStatus(t, s.Handler(), "/status")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if rep.Poll == nil || rep.Poll.Checks != 4 || !rep.Poll.Running {
		t.Fatalf("poll = %+v", rep.Poll)
	}
	if rep.SMS == nil || rep.SMS.SentInCycle != 2 {
		t.Fatalf("sms = %+v", rep.SMS)
	}
	if diff := cmp.Diff([]string{"push", "sms"}, rep.Channels); diff != "" {
		t.Fatalf("channels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&supervisor.Counters{Active: 3, Started: 4}, rep.Tasks); diff != "" {
		t.Fatalf("tasks (-want +got):\n%s", diff)
	}
	if len(rep.Recent) != 3 {
		t.Fatalf("recent = %d items", len(rep.Recent))
	}
}

func TestStatusRecentLimit(t *testing.T) {
	t.Parallel()
	s := New(Config{}, testSources(30), logx.Nop())

	_, rep := getStatus(t, s.Handler(), "/status")
	if len(rep.Recent) != defaultRecentEvents {
		t.Fatalf("default recent = %d", len(rep.Recent))
	}
	if rep.Recent[len(rep.Recent)-1].Check != 30 {
		t.Fatalf("expected newest last, got %+v", rep.Recent[len(rep.Recent)-1])
	}

	_, rep = getStatus(t, s.Handler(), "/status?recent=2")
	if got := []uint64{rep.Recent[0].Check, rep.Recent[1].Check}; !cmp.Equal(got, []uint64{29, 30}) {
		t.Fatalf("recent=2 -> %v", got)
	}

	if code, _ := getStatus(t, s.Handler(), "/status?recent=-1"); code != http.StatusBadRequest {
		t.Fatalf("recent=-1 code = %d", code)
	}
}

func TestStatusEmptySources(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Sources{}, logx.Nop())
	_, rep := getStatus(t, s.Handler(), "/status")
	if rep.Poll != nil || rep.SMS != nil || rep.Tasks != nil {
		t.Fatalf("unexpected sections: %+v", rep)
	}
	if rep.Channels == nil || rep.Recent == nil {
		t.Fatalf("lists should encode as empty arrays: %+v", rep)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, testSources(1), logx.Nop())
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestPprofMount(t *testing.T) {
	t.Parallel()
	off := New(Config{}, Sources{}, logx.Nop())
	rr := httptest.NewRecorder()
	off.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("pprof disabled: code = %d", rr.Code)
	}

	on := New(Config{Pprof: true}, Sources{}, logx.Nop())
	rr = httptest.NewRecorder()
	on.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("pprof enabled: code = %d", rr.Code)
	}
}

func TestPprofRefusesInsecureBind(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: "0.0.0.0:0", Pprof: true}, Sources{}, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		_ = s.Stop(context.Background())
		t.Fatal("expected refusal")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:8089": true,
		"localhost:80":   true,
		"[::1]:8089":     true,
		":8089":          false,
		"0.0.0.0:8089":   false,
		"10.1.2.3:8089":  false,
		"bad":            false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
