package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/gregdel/pushover"
)

type PushoverConfig struct {
	Token string
	User  string
	// Endpoint replaces pushover.APIEndpoint (the "/1" API root) for the
	// whole process.
	Endpoint string
}

// Pushover sends messages through the Pushover messages API.
type Pushover struct {
	cfg       PushoverConfig
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

func NewPushover(cfg PushoverConfig) *Pushover {
	if cfg.Endpoint != "" {
		pushover.APIEndpoint = strings.TrimRight(cfg.Endpoint, "/")
	}
	return &Pushover{
		cfg:       cfg,
		app:       pushover.New(cfg.Token),
		recipient: pushover.NewRecipient(cfg.User),
	}
}

// Send returns as soon as ctx is done. The client library takes no context,
// so the request itself keeps running in the background until it completes.
func (p *Pushover) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(p.cfg.Token) == "" || strings.TrimSpace(p.cfg.User) == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := pushover.NewMessageWithTitle(m.Body, m.Title)
	msg.URL = m.URL

	done := make(chan error, 1)
	go func() {
		_, err := p.app.SendMessage(msg, p.recipient)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("pushover: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
