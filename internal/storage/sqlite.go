package storage

import (
	"BanterStudio/internal/project"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS projects (
		key        TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		body       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS projects_updated_at ON projects(updated_at DESC);
`

// SQLite хранит документы проектов в одной таблице встроенной базы.
// Ключи и формат документа те же, что у файлового хранилища.
type SQLite struct {
	db *sql.DB
}

var _ Gateway = (*SQLite)(nil)

// OpenSQLite открывает (или создаёт) базу по пути path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return newSQLite(db)
}

func newSQLite(db *sql.DB) (*SQLite, error) {
	// Один писатель: SQLite всё равно сериализует запись
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close закрывает соединение с базой.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) List(ctx context.Context) ([]project.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, updated_at
		FROM projects
		ORDER BY updated_at DESC, key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	out := []project.Summary{}
	for rows.Next() {
		var sum project.Summary
		var updatedAt int64
		if err := rows.Scan(&sum.StorageKey, &sum.DisplayName, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if sum.DisplayName == "" {
			sum.DisplayName = project.DisplayNameFromKey(sum.StorageKey)
		}
		sum.LastModified = time.UnixMilli(updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Read(ctx context.Context, key string) (*project.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM projects WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project %s: %w", key, err)
	}
	var doc project.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", key, err)
	}
	return &doc, nil
}

func (s *SQLite) Write(ctx context.Context, key string, doc project.Document) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode project %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (key, name, updated_at, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at, body = excluded.body
	`, key, doc.DisplayName, doc.UpdatedAt, string(body))
	if err != nil {
		return fmt.Errorf("write project %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Move(ctx context.Context, oldKey, newKey string) error {
	if err := ValidateKey(newKey); err != nil {
		return err
	}
	if oldKey == newKey {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE key = ?`, newKey).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check project %s: %w", newKey, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrExists, newKey)
	}
	res, err := tx.ExecContext(ctx, `UPDATE projects SET key = ? WHERE key = ?`, newKey, oldKey)
	if err != nil {
		return fmt.Errorf("move project %s -> %s: %w", oldKey, newKey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
