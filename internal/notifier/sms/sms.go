// Package sms renders openings as text messages, gates them through the SMS
// throttle and sends them to every configured recipient.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablewatch/internal/availability"
	"tablewatch/internal/notifier"
	"tablewatch/internal/notifier/throttle"
	logx "tablewatch/pkg/logx"
)

const noticeTimeout = 30 * time.Second

// Sender delivers one text to one phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type Channel struct {
	sender     Sender
	recipients []string
	limiter    *throttle.Limiter
	log        logx.Logger
}

// New builds the SMS channel and installs it as the limiter's notice sender,
// so pause/unpause notices reach the same recipients without passing the gate.
func New(sender Sender, recipients []string, limiter *throttle.Limiter, log logx.Logger) *Channel {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Channel{
		sender:     sender,
		recipients: append([]string(nil), recipients...),
		limiter:    limiter,
		log:        log,
	}
	if limiter != nil {
		limiter.SetNotice(c.notice)
	}
	return c
}

func (c *Channel) Name() string { return notifier.ChannelSMS }

func (c *Channel) Send(ctx context.Context, ev notifier.Event) error {
	if c.limiter != nil && !c.limiter.Allow() {
		return notifier.ErrSuppressed
	}
	return c.sendAll(ctx, Render(ev))
}

// Render builds the SMS body. All four meal periods are listed, zeros included.
func Render(ev notifier.Event) string {
	return fmt.Sprintf("Availability detected for %s on %s:\n%s\n\n%s",
		ev.Target.Name, ev.Date, availability.FullSummary(ev.Availability, "\n"), ev.Target.DeepLink)
}

func (c *Channel) sendAll(ctx context.Context, body string) error {
	if c.sender == nil || len(c.recipients) == 0 {
		return errors.New("sms: no sender or recipients configured")
	}
	var errs []error
	for _, to := range c.recipients {
		if err := c.sender.Send(ctx, to, body); err != nil {
			errs = append(errs, fmt.Errorf("sms to %s: %w", maskNumber(to), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Channel) notice(body string) {
	ctx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
	defer cancel()
	if err := c.sendAll(ctx, body); err != nil {
		c.log.Warn("sms notice failed", logx.String("notice", body), logx.Err(err))
	}
}

// ParseRecipients splits an "&"-separated phone number list.
func ParseRecipients(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "&") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maskNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
