package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

// Open opens (creating if needed) the session database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// One connection keeps the single-writer file free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return db, nil
}

// SessionRepository stores the one session record in a single-row table, so a
// write replaces token and identity together.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS session (
	slot     INTEGER PRIMARY KEY CHECK (slot = 1),
	token    TEXT NOT NULL,
	identity TEXT NOT NULL,
	saved_at TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (r *SessionRepository) Load(ctx context.Context) (domain.Session, bool, error) {
	var token, identity string
	err := r.db.QueryRowContext(ctx, `SELECT token, identity FROM session WHERE slot = 1`).Scan(&token, &identity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	session, err := domain.NewSession(token, identity)
	if err != nil {
		// A half-written record is as good as none.
		return domain.Session{}, false, nil
	}
	return session, true, nil
}

func (r *SessionRepository) Save(ctx context.Context, session domain.Session) error {
	if !session.Present() {
		return domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("token and identity are both required"))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session (slot, token, identity, saved_at)
VALUES (1, ?, ?, ?)
ON CONFLICT (slot) DO UPDATE SET token = excluded.token, identity = excluded.identity, saved_at = excluded.saved_at
`, session.Token, session.Identity, r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session WHERE slot = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
