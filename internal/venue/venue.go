// Package venue resolves configured venue names into poll targets.
package venue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	logx "tablewatch/pkg/logx"
)

var ErrNoTargets = errors.New("no configured venue was found in the provider directory")

// Listing is one entry of the provider-wide venue directory.
type Listing struct {
	Name       string
	ID         string
	BookingURL string
}

// Search holds the fixed query parameters shared by every target.
type Search struct {
	StartDate      string // YYYY-MM-DD
	PartySize      int
	StayLengthDays int
}

// Target is a resolved venue. It is immutable after resolution.
type Target struct {
	Name     string
	VenueID  string
	QueryURL string
	DeepLink string
}

// Directory fetches the provider-wide venue list.
type Directory interface {
	Directory(ctx context.Context) ([]Listing, error)
}

// QueryURL builds the openings URL for one venue:
// {base}/v1/openings/{start}|{id}|{party}|{stay} with the separators escaped.
func QueryURL(base string, s Search, venueID string) string {
	key := strings.Join([]string{
		s.StartDate,
		venueID,
		strconv.Itoa(s.PartySize),
		strconv.Itoa(s.StayLengthDays),
	}, "|")
	return strings.TrimRight(base, "/") + "/v1/openings/" + url.PathEscape(key)
}

// Resolve maps names to targets using the directory listings. Names are matched
// exactly and keep their configured order; a name listed twice is resolved once.
// Names absent from the directory are logged and returned in missing; they
// never fail resolution.
func Resolve(names []string, listings []Listing, base string, s Search, log logx.Logger) (targets []Target, missing []string) {
	if log.IsZero() {
		log = logx.Nop()
	}
	byName := make(map[string]Listing, len(listings))
	for _, l := range listings {
		if _, dup := byName[l.Name]; !dup {
			byName[l.Name] = l
		}
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			log.Warn("restaurant listed more than once; checking it once", logx.String("name", name))
			continue
		}
		seen[name] = true
		l, ok := byName[name]
		if !ok {
			log.Warn("restaurant not found", logx.String("name", name))
			missing = append(missing, name)
			continue
		}
		targets = append(targets, Target{
			Name:     name,
			VenueID:  l.ID,
			QueryURL: QueryURL(base, s, l.ID),
			DeepLink: l.BookingURL,
		})
	}
	return targets, missing
}

// ResolveFrom fetches the directory once and resolves names against it.
// A directory fetch failure is returned as-is; the caller treats it as fatal.
func ResolveFrom(ctx context.Context, dir Directory, names []string, base string, s Search, log logx.Logger) ([]Target, []string, error) {
	listings, err := dir.Directory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch venue directory: %w", err)
	}
	targets, missing := Resolve(names, listings, base, s, log)
	if len(targets) == 0 && len(names) > 0 {
		return nil, missing, ErrNoTargets
	}
	return targets, missing, nil
}
