package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hazyhaar/baseline/dbopen"
)

// SQLiteSchema is the key/value table backing the SQLite store.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
    path        TEXT PRIMARY KEY,
    data        BLOB NOT NULL,
    updated_at  INTEGER NOT NULL
);`

// SQLite stores blobs as rows of a single table. Directories do not exist
// as such, so EnsureDir is a no-op.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps an opened database. The schema must already be applied
// (see SQLiteSchema, dbopen.WithSchema).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// OpenSQLite opens (or creates) a blob database at dbPath. opts tune the
// connection pragmas.
func OpenSQLite(dbPath string, opts ...dbopen.Option) (*SQLite, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(SQLiteSchema)}, opts...)
	db, err := dbopen.Open(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}
	return NewSQLite(db), nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func key(p string) string {
	return path.Clean("/" + p)
}

// EnsureDir is a no-op.
func (s *SQLite) EnsureDir(ctx context.Context, _ string) error {
	return ctx.Err()
}

// ReadFile returns the row content for p.
func (s *SQLite) ReadFile(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE path = ?`, key(p)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(p)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", p, err)
	}
	return data, nil
}

// AppendLine concatenates line+'\n' onto the row in one statement.
func (s *SQLite) AppendLine(ctx context.Context, p string, line []byte) error {
	if err := checkLine(line); err != nil {
		return err
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			data = CAST(blobs.data || excluded.data AS BLOB),
			updated_at = excluded.updated_at`,
		key(p), buf, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("blob: append %s: %w", p, err)
	}
	return nil
}

// WriteFile replaces the row content for p.
func (s *SQLite) WriteFile(ctx context.Context, p string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key(p), data, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("blob: write %s: %w", p, err)
	}
	return nil
}
