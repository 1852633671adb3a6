package audio

import (
	"context"
	"errors"
	"os/exec"
	"runtime"

	logx "tablewatch/pkg/logx"
)

// DefaultPlayerCommand returns the platform audio player, or nil if unknown.
func DefaultPlayerCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"afplay"}
	case "linux":
		return []string{"paplay"}
	}
	return nil
}

// DefaultUnmuteCommand returns the platform command that unmutes system output.
func DefaultUnmuteCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"osascript", "-e", "set volume without output muted"}
	case "linux":
		return []string{"pactl", "set-sink-mute", "@DEFAULT_SINK@", "0"}
	}
	return nil
}

// ExecPlayer plays files by running Command with the file path appended.
// The process is started and reaped in the background.
type ExecPlayer struct {
	Command []string
	Log     logx.Logger
}

func (p ExecPlayer) Play(ctx context.Context, path string) error {
	if len(p.Command) == 0 {
		return errors.New("no player command")
	}
	args := append(append([]string(nil), p.Command[1:]...), path)
	// Playback must outlive the send context; the speech file is removed on its own timer.
	cmd := exec.Command(p.Command[0], args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	log := p.Log
	go func() {
		if err := cmd.Wait(); err != nil && !log.IsZero() {
			log.Debug("player exited", logx.String("path", path), logx.Err(err))
		}
	}()
	return ctx.Err()
}

// ExecUnmuter runs a fixed command and waits for it.
type ExecUnmuter struct {
	Command []string
}

func (u ExecUnmuter) Unmute(ctx context.Context) error {
	if len(u.Command) == 0 {
		return errors.New("no unmute command")
	}
	return exec.CommandContext(ctx, u.Command[0], u.Command[1:]...).Run()
}
