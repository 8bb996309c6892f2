package app

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// TokenStore persists refresh-token state. Only a hash of the token is ever
// stored; the raw token lives solely with the client.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, refreshToken string, expiresAt time.Time) error
	IsActive(ctx context.Context, refreshToken string) (bool, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type SQLTokenStore struct {
	db *sql.DB
}

func NewSQLTokenStore(db *sql.DB) *SQLTokenStore {
	return &SQLTokenStore{db: db}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *SQLTokenStore) Store(ctx context.Context, userID uint64, refreshToken string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID,
		hashToken(refreshToken),
		expiresAt,
	)
	return err
}

func (s *SQLTokenStore) IsActive(ctx context.Context, refreshToken string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM refresh_tokens WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > NOW() LIMIT 1`,
		hashToken(refreshToken),
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLTokenStore) Revoke(ctx context.Context, refreshToken string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = ? AND revoked_at IS NULL`,
		hashToken(refreshToken),
	)
	return err
}
