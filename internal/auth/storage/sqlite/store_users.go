package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blindlog/blindlog/internal/auth/storage"
	"github.com/blindlog/blindlog/internal/auth/user"
)

const getUserQuery = `
SELECT u.id, COALESCE(e.email, ''), u.created_at, u.updated_at
FROM users u
LEFT JOIN user_emails e ON e.user_id = u.id
WHERE u.id = ?;
`

// PutUser persists a user record.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, created_at, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at;
`, u.ID, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user joined with its confirmed email, if any.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, getUserQuery, userID)
	record, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return record, nil
}

// GetUsers fetches the present subset of the given ids in one query.
func (s *Store) GetUsers(ctx context.Context, userIDs []string) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
SELECT u.id, COALESCE(e.email, ''), u.created_at, u.updated_at
FROM users u
LEFT JOIN user_emails e ON e.user_id = u.id
WHERE u.id IN (%s);
`, placeholders)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		record, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(scan func(dest ...any) error) (user.User, error) {
	var record user.User
	var createdAt, updatedAt int64
	if err := scan(&record.ID, &record.Email, &createdAt, &updatedAt); err != nil {
		return user.User{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
