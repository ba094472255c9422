package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fleetos/identity/internal/model"
)

// TokenStore is the durable contract for refresh-token session records.
// Revoked is a one-way flag: it is set on logout and rotation and never
// cleared, which keeps concurrent rotations on a stale token safe without
// locking.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, token string, expiresAt time.Time) error
	FindByToken(ctx context.Context, token string) (model.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	// DeleteAllForUser removes every session row for the user. Called on
	// logout-all and on reuse of an already-revoked refresh token.
	DeleteAllForUser(ctx context.Context, userID uint64) error
}

// TokenRepo is the MySQL implementation of TokenStore.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func (r *TokenRepo) Store(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, expiresAt.UTC())
	return err
}

func (r *TokenRepo) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token,expires_at,revoked,created_at,updated_at FROM refresh_tokens WHERE token=? LIMIT 1",
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, err
}

func (r *TokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=TRUE WHERE token=?", token)
	return err
}

func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
