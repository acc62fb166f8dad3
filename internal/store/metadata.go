package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ImportedFileHash returns the content hash recorded when the document name was
// last imported. Returns empty string and nil error if it was never imported.
func (s *Store) ImportedFileHash(ctx context.Context, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM imported_files WHERE path = ?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash imported under a document name.
func (s *Store) SetImportedFileHash(ctx context.Context, name, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?, imported_at = ?`,
		name, hash, time.Now(), hash, time.Now(),
	)
	return err
}
