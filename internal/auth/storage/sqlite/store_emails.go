package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blindlog/blindlog/internal/auth/storage"
)

// PutUserEmail stores a confirmed user email record. Writing an existing
// row id replaces its address, so a user re-confirming keeps one row.
func (s *Store) PutUserEmail(ctx context.Context, email storage.UserEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email.ID) == "" {
		return fmt.Errorf("email id is required")
	}
	if strings.TrimSpace(email.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(email.Email) == "" {
		return fmt.Errorf("email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO user_emails (id, user_id, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at;
`, email.ID, email.UserID, email.Email, toMillis(email.CreatedAt), toMillis(email.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user email: %w", err)
	}
	return nil
}

// GetUserEmailByEmail fetches the record owning an email address.
func (s *Store) GetUserEmailByEmail(ctx context.Context, email string) (storage.UserEmail, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserEmail{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserEmail{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return storage.UserEmail{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_id, email, created_at, updated_at
FROM user_emails
WHERE email = ?;
`, email)
	return scanUserEmail(row.Scan)
}

// GetUserEmailByUser fetches a user's confirmed email, if any.
func (s *Store) GetUserEmailByUser(ctx context.Context, userID string) (storage.UserEmail, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserEmail{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserEmail{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.UserEmail{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_id, email, created_at, updated_at
FROM user_emails
WHERE user_id = ?;
`, userID)
	return scanUserEmail(row.Scan)
}

func scanUserEmail(scan func(dest ...any) error) (storage.UserEmail, error) {
	var record storage.UserEmail
	var createdAt, updatedAt int64
	if err := scan(&record.ID, &record.UserID, &record.Email, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserEmail{}, storage.ErrNotFound
		}
		return storage.UserEmail{}, fmt.Errorf("get user email: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
