package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/flashexam/internal/model"

	_ "modernc.org/sqlite"
)

// Store is a SQLite vault: quizzes and their companion documents are rows
// keyed by document name.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps a :memory: database shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Read returns a document's content.
func (s *Store) Read(ctx context.Context, name string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE name = ?`, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrDocumentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", name, err)
	}
	return content, nil
}

// Write creates or replaces a document.
func (s *Store) Write(ctx context.Context, name, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (name, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content = ?, updated_at = ?`,
		name, text, time.Now(), text, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("write document %s: %w", name, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, name)
	return err
}

// DocumentInfo describes a stored document.
type DocumentInfo struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List returns all documents ordered by name.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, updated_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.Name, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentCount returns the number of stored documents.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}
