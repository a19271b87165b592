package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
)

// sessionRow is the column layout of the sessions table. Times are stored as
// Unix nanoseconds so ordering comparisons stay numeric.
type sessionRow struct {
	ID              string `db:"id"`
	Token           string `db:"token"`
	UserJSON        string `db:"user_json"`
	Authenticated   bool   `db:"authenticated"`
	FlashesJSON     string `db:"flashes_json"`
	PreferencesJSON string `db:"preferences_json"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
	ExpiresAt       int64  `db:"expires_at"`
}

func toRow(s *model.Session) (*sessionRow, error) {
	row := &sessionRow{
		ID:            s.ID.String(),
		Token:         s.Token,
		Authenticated: s.Authenticated,
		FlashesJSON:   "[]",
		CreatedAt:     s.CreatedAt.UnixNano(),
		UpdatedAt:     s.UpdatedAt.UnixNano(),
		ExpiresAt:     s.ExpiresAt.UnixNano(),
	}

	if s.User != nil {
		raw, err := json.Marshal(s.User)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal user")
		}
		row.UserJSON = string(raw)
	}
	if len(s.Flashes) > 0 {
		raw, err := json.Marshal(s.Flashes)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal flashes")
		}
		row.FlashesJSON = string(raw)
	}
	raw, err := json.Marshal(s.Preferences)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal preferences")
	}
	row.PreferencesJSON = string(raw)

	return row, nil
}

func (r *sessionRow) toModel() (*model.Session, error) {
	s := &model.Session{
		ID:            model.SessionID(r.ID),
		Token:         r.Token,
		Authenticated: r.Authenticated,
		CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:     time.Unix(0, r.UpdatedAt).UTC(),
		ExpiresAt:     time.Unix(0, r.ExpiresAt).UTC(),
	}

	if r.UserJSON != "" {
		var user model.User
		if err := json.Unmarshal([]byte(r.UserJSON), &user); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("id", r.ID))
		}
		s.User = &user
	}
	if r.FlashesJSON != "" && r.FlashesJSON != "[]" {
		if err := json.Unmarshal([]byte(r.FlashesJSON), &s.Flashes); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal flashes", goerr.V("id", r.ID))
		}
	}
	if err := json.Unmarshal([]byte(r.PreferencesJSON), &s.Preferences); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal preferences", goerr.V("id", r.ID))
	}

	return s, nil
}

func (s *SQLite) PutSession(ctx context.Context, session *model.Session) error {
	if err := session.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session")
	}

	row, err := toRow(session)
	if err != nil {
		return err
	}

	const query = `
		INSERT OR REPLACE INTO sessions (
			id, token, user_json, authenticated, flashes_json, preferences_json,
			created_at, updated_at, expires_at
		) VALUES (
			:id, :token, :user_json, :authenticated, :flashes_json, :preferences_json,
			:created_at, :updated_at, :expires_at
		)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("id", session.ID))
	}

	return nil
}

func (s *SQLite) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid session ID")
	}

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM sessions WHERE id = ?", id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("id", id))
	}

	return row.toModel()
}

func (s *SQLite) DeleteSession(ctx context.Context, id model.SessionID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session ID")
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id.String())
	if err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("id", id))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
	}

	return nil
}

func (s *SQLite) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]model.SessionID, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var ids []string
	if err := tx.SelectContext(ctx, &ids, "SELECT id FROM sessions WHERE expires_at <= ?", now.UnixNano()); err != nil {
		return nil, goerr.Wrap(err, "failed to select expired sessions")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UnixNano()); err != nil {
		return nil, goerr.Wrap(err, "failed to delete expired sessions")
	}
	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit expired session deletion")
	}

	deleted := make([]model.SessionID, len(ids))
	for i, id := range ids {
		deleted[i] = model.SessionID(id)
	}
	return deleted, nil
}
