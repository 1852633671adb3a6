package storage

import (
	"errors"
	"time"

	"tablewatch/internal/availability"
)

var ErrDisabled = errors.New("storage disabled")

const DefaultFilePath = "./reservation-openings-log.txt"

// Config configures storage.
//
// If Driver is empty it defaults to "file"; "none" disables storage.
type Config struct {
	Driver      string
	Path        string        // file and sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// OpeningEntry is one detection. Keep it compact and schema-stable.
type OpeningEntry struct {
	At    time.Time
	Check uint64
	Venue string
	Date  string
	Meals availability.MealAvailability
}
