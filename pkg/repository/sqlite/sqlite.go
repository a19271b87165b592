package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

var ErrNotFound = interfaces.ErrSessionNotFound

// SQLite is a SessionRepository backed by a local SQLite file. It suits a
// single-node deployment where sessions must survive restarts.
type SQLite struct {
	db *sqlx.DB
}

var _ interfaces.SessionRepository = &SQLite{}

// New opens (or creates) the database at dsn and applies pending
// migrations. Use ":memory:" for a throwaway database.
func New(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("dsn", dsn))
	}

	// An in-memory database exists per connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// migrate applies every migration newer than the recorded schema version.
func (s *SQLite) migrate(ctx context.Context) error {
	current := 0

	var tables int
	if err := s.db.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	); err != nil {
		return goerr.Wrap(err, "failed to check schema_version table")
	}

	if tables > 0 {
		if err := s.db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return goerr.Wrap(err, "failed to read schema version")
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return goerr.Wrap(err, "failed to apply migration", goerr.V("version", m.version))
		}
	}

	return nil
}
