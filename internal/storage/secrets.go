package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetSecret encrypts and stores a named secret, replacing any previous value.
func (s *SQLiteStorage) SetSecret(ctx context.Context, name, value string) error {
	encrypted, err := EncryptSecret(value, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO secrets (name, value_encrypted, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		name, encrypted)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// GetSecret retrieves and decrypts a named secret.
// Returns ErrNotFound if no secret has that name.
func (s *SQLiteStorage) GetSecret(ctx context.Context, name string) (string, error) {
	var encrypted []byte
	err := s.db.QueryRowContext(ctx, "SELECT value_encrypted FROM secrets WHERE name = ?", name).Scan(&encrypted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query secret: %w", err)
	}

	value, err := DecryptSecret(encrypted, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return value, nil
}

// DeleteSecret removes a named secret.
// Returns ErrNotFound if no secret has that name.
func (s *SQLiteStorage) DeleteSecret(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM secrets WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
