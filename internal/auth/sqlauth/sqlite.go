// Package sqlauth stores credentials in a SQLite database.
package sqlauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/extauthd/internal/auth"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT NOT NULL,
	server TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, server)
);
`

// Store implements auth.Authenticator and auth.UserManager.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single connection serializes writes
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) hash(ctx context.Context, user, server string) (string, bool, error) {
	var h string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ? AND server = ?`,
		user, server,
	).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

func (s *Store) Authenticate(ctx context.Context, user, server, password string) (bool, error) {
	h, ok, err := s.hash(ctx, user, server)
	if err != nil || !ok {
		return false, err
	}
	return auth.CheckPassword(h, password)
}

func (s *Store) Exists(ctx context.Context, user, server string) (bool, error) {
	_, ok, err := s.hash(ctx, user, server)
	return ok, err
}

func (s *Store) SetPassword(ctx context.Context, user, server, password string) (bool, error) {
	h, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.affected(s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ? AND server = ?`,
		h, user, server,
	))
}

func (s *Store) Register(ctx context.Context, user, server, password string) (bool, error) {
	h, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.affected(s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, server, password_hash) VALUES (?, ?, ?)`,
		user, server, h,
	))
}

func (s *Store) Remove(ctx context.Context, user, server string) (bool, error) {
	return s.affected(s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ? AND server = ?`,
		user, server,
	))
}

func (s *Store) RemoveSafely(ctx context.Context, user, server, password string) (bool, error) {
	h, ok, err := s.hash(ctx, user, server)
	if err != nil || !ok {
		return false, err
	}
	match, err := auth.CheckPassword(h, password)
	if err != nil || !match {
		return false, err
	}
	// guard against a concurrent password change between read and delete
	return s.affected(s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ? AND server = ? AND password_hash = ?`,
		user, server, h,
	))
}

func (s *Store) affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
