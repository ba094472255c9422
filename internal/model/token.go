package model

import "time"

// RefreshToken models a row in the `refresh_tokens` table. The full signed
// refresh token string is the lookup key; Revoked is a one-way flag that is
// set on logout and rotation and never cleared. Rows are only deleted in
// bulk (logout-all, theft response).
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	Token     string    // refresh_tokens.token
	ExpiresAt time.Time // refresh_tokens.expires_at (mirrors the token's exp claim)
	Revoked   bool      // refresh_tokens.revoked
	CreatedAt time.Time // refresh_tokens.created_at
	UpdatedAt time.Time // refresh_tokens.updated_at
}
