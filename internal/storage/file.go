package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"tablewatch/internal/availability"
	logx "tablewatch/pkg/logx"
)

const lineTimeLayout = "1/2/06, 3:04 PM"

// fileStore appends one human-readable line per detection.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex
	f  *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, f: f}, nil
}

// FormatLine renders e as
// "<M/D/YY, h:mm PM> - Check <n> - <venue> - <date> Breakfast: b Brunch: b Lunch: l Dinner: d".
func FormatLine(e OpeningEntry) string {
	return e.At.Format(lineTimeLayout) + " - Check " + strconv.FormatUint(e.Check, 10) + " - " +
		availability.LogLine(e.Venue, e.Date, e.Meals)
}

func (s *fileStore) AppendOpening(_ context.Context, e OpeningEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("opening log closed")
	}
	_, err := s.f.WriteString(FormatLine(e) + "\n")
	return err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
