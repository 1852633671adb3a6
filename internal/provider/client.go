// Package provider talks to the reservation-availability HTTP endpoints:
// the venue directory and the per-venue openings query.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tablewatch/internal/availability"
	"tablewatch/internal/venue"
)

const (
	DefaultBaseURL   = "https://mousedining.com"
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "tablewatch/1.0"
	maxBodyBytes     = 4 << 20
)

// ErrStatus is returned (wrapped) for non-2xx upstream responses.
var ErrStatus = errors.New("unexpected upstream status")

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	RatePerSec float64 // 0 disables outbound rate limiting
	Burst      int
}

type Client struct {
	http    *http.Client
	base    string
	ua      string
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    strings.TrimRight(base, "/"),
		ua:      ua,
		limiter: lim,
	}
}

// BaseURL is the root used for directory and openings URLs.
func (c *Client) BaseURL() string { return c.base }

// Directory fetches every venue known to the provider.
func (c *Client) Directory(ctx context.Context) ([]venue.Listing, error) {
	var dtos []venueDTO
	if err := c.getJSON(ctx, c.base+"/v1/restaurants", &dtos); err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	out := make([]venue.Listing, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, venue.Listing{Name: d.Name, ID: string(d.ID), BookingURL: d.DisneyURL})
	}
	return out, nil
}

// Openings fetches the per-date availability for one target, in provider order.
func (c *Client) Openings(ctx context.Context, t venue.Target) ([]availability.Record, error) {
	var dtos []openingDTO
	if err := c.getJSON(ctx, t.QueryURL, &dtos); err != nil {
		return nil, fmt.Errorf("openings %s: %w", t.Name, err)
	}
	out := make([]availability.Record, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.record())
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
