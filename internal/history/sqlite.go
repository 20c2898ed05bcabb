package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS consultations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	issue      TEXT NOT NULL,
	advice     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_consultations_user_created
	ON consultations (user_id, created_at DESC);
`

// OpenSQLite opens (or creates) the database at path with WAL and a busy
// timeout. Use ":memory:" in tests.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("history.OpenSQLite: parent directory %q does not exist", dir)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history.OpenSQLite: open %q: %w", path, err)
	}

	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history.OpenSQLite: ping %q: %w", path, err)
	}

	return db, nil
}

// SQLiteStore implements Store on database/sql with the modernc driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore migrates the schema and returns a store on db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, c Consultation) (Consultation, error) {
	if c.UserID == "" || c.Issue == "" || c.Advice == "" {
		return Consultation{}, ErrInvalidConsultation
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.CreatedAt = c.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consultations (id, user_id, issue, advice, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Issue, c.Advice, c.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Consultation{}, fmt.Errorf("history: save: %w", err)
	}
	return c, nil
}

// List implements Store. A non-positive limit uses DefaultListLimit.
func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]Consultation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, issue, advice, created_at FROM consultations
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := make([]Consultation, 0)
	for rows.Next() {
		var c Consultation
		var created int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Issue, &c.Advice, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM consultations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("history: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneBefore implements Store.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM consultations WHERE created_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
