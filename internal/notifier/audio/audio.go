// Package audio plays a local alert sound and optionally speaks the opening
// through a text-to-speech service.
//
// Synthesized speech is written to a uniquely named temporary file, played and
// removed after a fixed delay whether or not playback has finished. Pending
// removals are owned by the channel and flushed by Close.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"tablewatch/internal/availability"
	"tablewatch/internal/clock"
	"tablewatch/internal/notifier"
	logx "tablewatch/pkg/logx"
)

const (
	DefaultSoundPause   = 2 * time.Second
	DefaultCleanupDelay = 15 * time.Second
)

type Config struct {
	SoundEnabled bool
	SoundFile    string
	SoundPause   time.Duration
	TTSEnabled   bool
	OverrideMute bool
	CleanupDelay time.Duration
	// TempDir defaults to os.TempDir().
	TempDir string
	// Loc renders the spoken date.
	Loc *time.Location
}

// Player starts playback of an audio file. It returns once playback has
// started, not when it ends.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Synthesizer turns text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Unmuter forces system output audible.
type Unmuter interface {
	Unmute(ctx context.Context) error
}

type Channel struct {
	cfg     Config
	player  Player
	synth   Synthesizer
	unmuter Unmuter
	clock   clock.Clock
	log     logx.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]clock.Timer
	closed  bool
}

type Option func(*Channel)

func WithClock(c clock.Clock) Option       { return func(ch *Channel) { ch.clock = c } }
func WithLogger(log logx.Logger) Option    { return func(ch *Channel) { ch.log = log } }
func WithSynthesizer(s Synthesizer) Option { return func(ch *Channel) { ch.synth = s } }
func WithUnmuter(u Unmuter) Option         { return func(ch *Channel) { ch.unmuter = u } }

func New(cfg Config, player Player, opts ...Option) *Channel {
	if cfg.SoundPause < 0 {
		cfg.SoundPause = 0
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = DefaultCleanupDelay
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	c := &Channel{cfg: cfg, player: player, pending: map[string]clock.Timer{}}
	for _, o := range opts {
		o(c)
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	return c
}

func (c *Channel) Name() string { return notifier.ChannelAudio }

// Send plays the alert sound, waits for it to finish, then speaks the opening.
// Each stage runs even if an earlier one failed; errors are joined.
func (c *Channel) Send(ctx context.Context, ev notifier.Event) error {
	if c.player == nil {
		return errors.New("audio: no player configured")
	}
	sound, tts := c.Modes()
	var errs []error

	if c.cfg.OverrideMute && c.unmuter != nil {
		if err := c.unmuter.Unmute(ctx); err != nil {
			c.log.Warn("unmute failed", logx.Err(err))
		}
	}

	if sound && c.cfg.SoundFile != "" {
		if err := c.player.Play(ctx, c.cfg.SoundFile); err != nil {
			errs = append(errs, fmt.Errorf("alert sound: %w", err))
		} else if tts && c.cfg.SoundPause > 0 {
			if err := c.wait(ctx, c.cfg.SoundPause); err != nil {
				return errors.Join(append(errs, err)...)
			}
		}
	}

	if tts {
		if err := c.speak(ctx, Sentence(ev, c.cfg.Loc)); err != nil {
			errs = append(errs, fmt.Errorf("tts: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SetModes switches the alert sound and speech on or off for later sends.
func (c *Channel) SetModes(sound, tts bool) {
	c.mu.Lock()
	c.cfg.SoundEnabled, c.cfg.TTSEnabled = sound, tts
	c.mu.Unlock()
}

func (c *Channel) Modes() (sound, tts bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.SoundEnabled, c.cfg.TTSEnabled
}

// Sentence is the spoken announcement for an opening.
func Sentence(ev notifier.Event, loc *time.Location) string {
	return fmt.Sprintf("%s has availability on %s for %s.",
		ev.Target.Name, availability.LongDate(ev.Date, loc), availability.SpokenMeals(ev.Availability))
}

func (c *Channel) speak(ctx context.Context, text string) error {
	if c.synth == nil {
		return errors.New("no synthesizer configured")
	}
	audio, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	path, err := c.tempPath()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(audio)); err != nil {
		return fmt.Errorf("write speech file: %w", err)
	}
	c.scheduleCleanup(path)
	return c.player.Play(ctx, path)
}

func (c *Channel) tempPath() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", errors.New("audio channel closed")
	}
	c.seq++
	name := fmt.Sprintf("tablewatch-tts-%d-%d.mp3", c.clock.Now().UnixNano(), c.seq)
	return filepath.Join(c.cfg.TempDir, name), nil
}

func (c *Channel) scheduleCleanup(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[path] = c.clock.AfterFunc(c.cfg.CleanupDelay, func() {
		c.mu.Lock()
		delete(c.pending, path)
		c.mu.Unlock()
		c.remove(path)
	})
}

func (c *Channel) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn("remove speech file failed", logx.String("path", path), logx.Err(err))
	}
}

// Pending lists speech files waiting for cleanup.
func (c *Channel) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pending))
	for p := range c.pending {
		out = append(out, p)
	}
	return out
}

// Close cancels pending cleanup timers and removes their files immediately.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = map[string]clock.Timer{}
	c.mu.Unlock()

	for path, t := range pending {
		t.Stop()
		c.remove(path)
	}
	return nil
}

func (c *Channel) wait(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	t := c.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
