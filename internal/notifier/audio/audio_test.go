package audio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tablewatch/internal/availability"
	"tablewatch/internal/clock"
	"tablewatch/internal/notifier"
	"tablewatch/internal/venue"
)

var venueZone = time.FixedZone("venue", -6*60*60)

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	data   map[string]string
	fail   string
}

func (p *fakePlayer) Play(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path == p.fail {
		return errors.New("device busy")
	}
	p.played = append(p.played, path)
	if b, err := os.ReadFile(path); err == nil {
		if p.data == nil {
			p.data = map[string]string{}
		}
		p.data[path] = string(b)
	}
	return nil
}

func (p *fakePlayer) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type fakeSynth struct {
	mu   sync.Mutex
	text string
}

func (s *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	return []byte("ID3-audio"), nil
}

type countUnmuter struct{ n int }

func (u *countUnmuter) Unmute(context.Context) error { u.n++; return nil }

func testEvent() notifier.Event {
	return notifier.Event{
		Target: venue.Target{Name: "Space 220"},
		Date:   "2024-02-01",
		Availability: availability.MealAvailability{
			availability.Breakfast: 1,
			availability.Brunch:    2,
			availability.Dinner:    4,
		},
	}
}

func TestSentence(t *testing.T) {
	want := "Space 220 has availability on Thursday, February 1 for breakfast, brunch and dinner."
	if got := Sentence(testEvent(), venueZone); got != want {
		t.Fatalf("sentence:\n%s", cmp.Diff(want, got))
	}

	ev := testEvent()
	ev.Availability = availability.MealAvailability{availability.Lunch: 1}
	want = "Space 220 has availability on Thursday, February 1 for lunch."
	if got := Sentence(ev, venueZone); got != want {
		t.Fatalf("single meal:\n%s", cmp.Diff(want, got))
	}
}

func TestSpeechFileWrittenPlayedAndCleanedUp(t *testing.T) {
	dir := t.TempDir()
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	player := &fakePlayer{}
	synth := &fakeSynth{}
	ch := New(Config{TTSEnabled: true, TempDir: dir, Loc: venueZone}, player,
		WithClock(fc), WithSynthesizer(synth))

	if err := ch.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	played := player.list()
	if len(played) != 1 {
		t.Fatalf("played = %v", played)
	}
	if player.data[played[0]] != "ID3-audio" {
		t.Fatalf("speech file content = %q", player.data[played[0]])
	}
	if synth.text == "" {
		t.Fatal("synthesizer not called")
	}
	if diff := cmp.Diff(played, ch.Pending()); diff != "" {
		t.Fatalf("pending (-want +got):\n%s", diff)
	}

	fc.Advance(DefaultCleanupDelay - time.Second)
	if _, err := os.Stat(played[0]); err != nil {
		t.Fatalf("file removed too early: %v", err)
	}
	fc.Advance(time.Second)
	if _, err := os.Stat(played[0]); !os.IsNotExist(err) {
		t.Fatalf("file should be removed, stat err = %v", err)
	}
	if len(ch.Pending()) != 0 {
		t.Fatal("pending should be empty")
	}
}

func TestUniqueSpeechFiles(t *testing.T) {
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	player := &fakePlayer{}
	ch := New(Config{TTSEnabled: true, TempDir: t.TempDir()}, player,
		WithClock(fc), WithSynthesizer(&fakeSynth{}))

	for i := 0; i < 2; i++ {
		if err := ch.Send(context.Background(), testEvent()); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	played := player.list()
	if len(played) != 2 || played[0] == played[1] {
		t.Fatalf("expected two distinct files, got %v", played)
	}
}

func TestCloseRemovesPendingFiles(t *testing.T) {
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	player := &fakePlayer{}
	ch := New(Config{TTSEnabled: true, TempDir: t.TempDir()}, player,
		WithClock(fc), WithSynthesizer(&fakeSynth{}))

	if err := ch.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	path := player.list()[0]
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be removed on close, stat err = %v", err)
	}
	if fc.Pending() != 0 {
		t.Fatalf("timers still pending: %d", fc.Pending())
	}
	if err := ch.Send(context.Background(), testEvent()); err == nil {
		t.Fatal("send after close should fail the tts stage")
	}
}

func TestSoundThenPauseThenSpeech(t *testing.T) {
	fc := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	player := &fakePlayer{}
	mute := &countUnmuter{}
	ch := New(Config{
		SoundEnabled: true,
		SoundFile:    "/sounds/alert.wav",
		SoundPause:   DefaultSoundPause,
		TTSEnabled:   true,
		OverrideMute: true,
		TempDir:      t.TempDir(),
	}, player, WithClock(fc), WithSynthesizer(&fakeSynth{}), WithUnmuter(mute))

	done := make(chan error, 1)
	go func() { done <- ch.Send(context.Background(), testEvent()) }()

	deadline := time.Now().Add(2 * time.Second)
	for fc.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sound pause was never scheduled")
		}
		time.Sleep(time.Millisecond)
	}
	if got := player.list(); len(got) != 1 || got[0] != "/sounds/alert.wav" {
		t.Fatalf("before pause played = %v", got)
	}

	fc.Advance(DefaultSoundPause)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not finish after pause")
	}
	if got := player.list(); len(got) != 2 {
		t.Fatalf("played = %v", got)
	}
	if mute.n != 1 {
		t.Fatalf("unmute calls = %d", mute.n)
	}
}

func TestSoundFailureStillSpeaks(t *testing.T) {
	player := &fakePlayer{fail: "/sounds/alert.wav"}
	ch := New(Config{
		SoundEnabled: true,
		SoundFile:    "/sounds/alert.wav",
		SoundPause:   time.Hour,
		TTSEnabled:   true,
		TempDir:      t.TempDir(),
	}, player, WithClock(clock.NewFake(time.Unix(0, 0))), WithSynthesizer(&fakeSynth{}))

	err := ch.Send(context.Background(), testEvent())
	if err == nil {
		t.Fatal("expected sound error")
	}
	if len(player.list()) != 1 {
		t.Fatalf("speech should still play, played = %v", player.list())
	}
}

func TestSetModes(t *testing.T) {
	player := &fakePlayer{}
	ch := New(Config{SoundEnabled: true, SoundFile: "/sounds/alert.wav"}, player,
		WithClock(clock.NewFake(time.Unix(0, 0))))

	ch.SetModes(false, false)
	if err := ch.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(player.list()) != 0 {
		t.Fatalf("muted channel played %v", player.list())
	}

	ch.SetModes(true, false)
	if err := ch.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if diff := cmp.Diff([]string{"/sounds/alert.wav"}, player.list()); diff != "" {
		t.Fatalf("played (-want +got):\n%s", diff)
	}
	if sound, tts := ch.Modes(); !sound || tts {
		t.Fatalf("modes = %v, %v", sound, tts)
	}
}

func TestHTTPSynthesizer(t *testing.T) {
	var req map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "mp3")
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(TTSConfig{URL: srv.URL, APIKey: "k"})
	b, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(b) != "mp3" || auth != "Bearer k" {
		t.Fatalf("got %q auth=%q", b, auth)
	}
	want := map[string]string{"model": DefaultTTSModel, "input": "hello", "voice": DefaultTTSVoice}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
}

func TestHTTPSynthesizerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	if _, err := NewHTTPSynthesizer(TTSConfig{URL: srv.URL}).Synthesize(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
