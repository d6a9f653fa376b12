package objstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyTimeoutMS   = 5000
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteConnMaxLifetime = 5 * time.Minute
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS objects (
  key TEXT PRIMARY KEY,
  size INTEGER NOT NULL,
  data BLOB NOT NULL,
  meta TEXT NOT NULL DEFAULT '{}'
);
`

// SQLite keeps objects and their metadata in a single database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and bootstraps) an object store at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}
	if err := configureSQLiteDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func configureSQLiteDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", sqliteBusyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	db.SetMaxOpenConns(sqliteMaxOpenConns)
	db.SetMaxIdleConns(sqliteMaxIdleConns)
	db.SetConnMaxLifetime(sqliteConnMaxLifetime)
	return nil
}

// Put inserts the object. An existing row under key is left untouched.
func (s *SQLite) Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short write for %s: got %d bytes, want %d", key, len(data), size)
	}
	metaJSON, err := metaToJSON(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (key, size, data, meta) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, int64(len(data)), data, metaJSON)
	return err
}

// Get returns the payload and info for key.
func (s *SQLite) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var zero ObjectInfo
	row := s.db.QueryRowContext(ctx, `SELECT size, data, meta FROM objects WHERE key = ?`, key)
	var size int64
	var data []byte
	var metaJSON string
	if err := row.Scan(&size, &data, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, zero, ErrNotExist
		}
		return nil, zero, err
	}
	meta, err := metaFromJSON(metaJSON)
	if err != nil {
		return nil, zero, err
	}
	info := ObjectInfo{Key: key, Size: size, Meta: meta}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Head returns info for key without loading the payload.
func (s *SQLite) Head(ctx context.Context, key string) (ObjectInfo, error) {
	var zero ObjectInfo
	row := s.db.QueryRowContext(ctx, `SELECT size, meta FROM objects WHERE key = ?`, key)
	var size int64
	var metaJSON string
	if err := row.Scan(&size, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return zero, ErrNotExist
		}
		return zero, err
	}
	meta, err := metaFromJSON(metaJSON)
	if err != nil {
		return zero, err
	}
	return ObjectInfo{Key: key, Size: size, Meta: meta}, nil
}

// Delete removes the object row.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotExist
	}
	return nil
}

// List enumerates all objects with metadata.
func (s *SQLite) List(ctx context.Context) ([]ObjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, size, meta FROM objects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		var metaJSON string
		if err := rows.Scan(&info.Key, &info.Size, &metaJSON); err != nil {
			return nil, err
		}
		if info.Meta, err = metaFromJSON(metaJSON); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func metaToJSON(meta Metadata) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func metaFromJSON(raw string) (Metadata, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}
