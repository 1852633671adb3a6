package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// BaseURL redirects every API request to another scheme and host.
	BaseURL string
	Timeout time.Duration
}

// Twilio sends messages through the Twilio Messages resource.
type Twilio struct {
	cfg  TwilioConfig
	rest *twilio.RestClient
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
			hc.Transport = rebaseTransport{base: u, next: http.DefaultTransport}
		}
	}
	c := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  hc,
	}
	c.SetAccountSid(cfg.AccountSID)
	return &Twilio{cfg: cfg, rest: twilio.NewRestClientWithParams(twilio.ClientParams{Client: c})}
}

// Send returns as soon as ctx is done. The SDK call takes no context, so an
// abandoned request runs on until the client Timeout.
func (t *Twilio) Send(ctx context.Context, to, body string) error {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" || t.cfg.From == "" {
		return errors.New("twilio: missing credentials")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.cfg.From)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		_, err := t.rest.Api.CreateMessage(params)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type rebaseTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (rt rebaseTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.base.Scheme
	r.URL.Host = rt.base.Host
	r.Host = rt.base.Host
	return rt.next.RoundTrip(r)
}
