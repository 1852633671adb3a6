package storage

import (
	"context"
	"errors"
	"strings"

	logx "tablewatch/pkg/logx"
)

// Store is the persistence API used by the poll loop.
type Store interface {
	AppendOpening(ctx context.Context, e OpeningEntry) error
	Close() error
}

// Open initializes the configured store. Driver "none" returns a store whose
// appends report ErrDisabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	case "none":
		return noneStore{}, nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

type noneStore struct{}

func (noneStore) AppendOpening(context.Context, OpeningEntry) error { return ErrDisabled }
func (noneStore) Close() error                                      { return nil }
