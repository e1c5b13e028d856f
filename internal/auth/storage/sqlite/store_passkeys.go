package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blindlog/blindlog/internal/auth/storage"
)

// PutPasskeyCredential stores a WebAuthn credential.
func (s *Store) PutPasskeyCredential(ctx context.Context, credential storage.PasskeyCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	lastUsed := sql.NullInt64{}
	if credential.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*credential.LastUsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_credentials (credential_id, user_id, public_key, sign_count, created_at, updated_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`,
		credential.CredentialID,
		credential.UserID,
		credential.PublicKey,
		int64(credential.SignCount),
		toMillis(credential.CreatedAt),
		toMillis(credential.UpdatedAt),
		lastUsed,
	)
	if err != nil {
		return fmt.Errorf("put passkey: %w", err)
	}
	return nil
}

// GetPasskeyCredential fetches a stored WebAuthn credential.
func (s *Store) GetPasskeyCredential(ctx context.Context, credentialID string) (storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PasskeyCredential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.PasskeyCredential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, user_id, public_key, sign_count, created_at, updated_at, last_used_at
FROM passkey_credentials
WHERE credential_id = ?;
`, credentialID)

	credential, err := scanPasskey(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeyCredential{}, storage.ErrNotFound
		}
		return storage.PasskeyCredential{}, fmt.Errorf("get passkey: %w", err)
	}
	return credential, nil
}

// ListPasskeyCredentials returns passkeys for a user.
func (s *Store) ListPasskeyCredentials(ctx context.Context, userID string) ([]storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, user_id, public_key, sign_count, created_at, updated_at, last_used_at
FROM passkey_credentials
WHERE user_id = ?
ORDER BY created_at;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list passkeys: %w", err)
	}
	defer rows.Close()

	var credentials []storage.PasskeyCredential
	for rows.Next() {
		credential, err := scanPasskey(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan passkey: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passkeys: %w", err)
	}
	return credentials, nil
}

// HasPasskeyCredential reports whether a credential id is already registered.
func (s *Store) HasPasskeyCredential(ctx context.Context, credentialID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return false, fmt.Errorf("credential id is required")
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT 1 FROM passkey_credentials WHERE credential_id = ?;", credentialID,
	).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("has passkey: %w", err)
	}
	return true, nil
}

// AdvanceSignCount raises the stored counter via a conditional MAX update.
func (s *Store) AdvanceSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE passkey_credentials
SET sign_count = MAX(sign_count, ?), updated_at = ?, last_used_at = ?
WHERE credential_id = ?;
`, int64(signCount), toMillis(usedAt), toMillis(usedAt), credentialID)
	if err != nil {
		return fmt.Errorf("advance sign count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance sign count rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPasskey(scan func(dest ...any) error) (storage.PasskeyCredential, error) {
	var credential storage.PasskeyCredential
	var signCount, createdAt, updatedAt int64
	var lastUsed sql.NullInt64
	if err := scan(
		&credential.CredentialID,
		&credential.UserID,
		&credential.PublicKey,
		&signCount,
		&createdAt,
		&updatedAt,
		&lastUsed,
	); err != nil {
		return storage.PasskeyCredential{}, err
	}
	credential.SignCount = uint32(signCount)
	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}
