package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createTokenTable = `CREATE TABLE IF NOT EXISTS token (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

type SQLiteTokenStore struct {
	db *sql.DB
}

func NewSQLiteTokenStore(dbPath string) (*SQLiteTokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create token db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(createTokenTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create token table: %w", err)
	}

	return &SQLiteTokenStore{db: db}, nil
}

func (s *SQLiteTokenStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM token WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get token: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteTokenStore) Set(ctx context.Context, key string, value string) error {
	query := "INSERT INTO token (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *SQLiteTokenStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM token WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
