// Package service implements the identity core: the OTP challenge engine,
// the credential & session service and the tenant lifecycle service.
// Services depend on the repository interfaces and the Redis client only,
// so they can be tested with in-memory fakes and miniredis.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetos/identity/internal/apperr"
	"github.com/fleetos/identity/internal/utils"
)

// Challenge kinds. One key scheme serves both registration flows; the kind
// tag keeps a tenant challenge from completing a user registration and vice
// versa.
const (
	OtpKindUser   = "user"
	OtpKindTenant = "tenant"
)

const (
	otpKeyPrefix = "otp:"
	otpTTL       = 5 * time.Minute
)

// pendingOtp is the staged challenge stored under otp:<email>. The payload
// is kept as raw JSON so a resend restores it verbatim, optional fields
// included; only the code and TTL change.
type pendingOtp struct {
	Kind    string          `json:"kind"`
	Email   string          `json:"email"`
	Code    string          `json:"code"`
	Payload json.RawMessage `json:"payload"`
}

// OtpService generates, stores, resends and verifies one-time codes bound
// to a pending registration payload. Nothing touches durable storage until
// a code is verified; abandoned registrations expire with the key.
type OtpService struct {
	rdb *redis.Client
}

func NewOtpService(rdb *redis.Client) *OtpService { return &OtpService{rdb: rdb} }

func otpKey(email string) string { return otpKeyPrefix + email }

// Issue stages a challenge for the email, unconditionally overwriting any
// prior pending challenge. Returns the generated code so the caller can
// hand it to the notification publisher.
func (s *OtpService) Issue(ctx context.Context, kind, email string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return s.store(ctx, kind, email, raw)
}

func (s *OtpService) store(ctx context.Context, kind, email string, payload json.RawMessage) (string, error) {
	code, err := utils.NewOtpCode()
	if err != nil {
		return "", err
	}
	val, err := json.Marshal(pendingOtp{Kind: kind, Email: email, Code: code, Payload: payload})
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, otpKey(email), val, otpTTL).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Resend re-issues the pending challenge with a fresh code and TTL, keeping
// the staged payload byte-for-byte. Fails when no challenge is pending.
func (s *OtpService) Resend(ctx context.Context, email string) (kind, code string, err error) {
	stored, err := s.get(ctx, email)
	if err != nil {
		return "", "", err
	}
	code, err = s.store(ctx, stored.Kind, email, stored.Payload)
	if err != nil {
		return "", "", err
	}
	return stored.Kind, code, nil
}

// Verify checks the submitted code against the pending challenge. On
// success the key is deleted (single use) and the staged payload is
// returned with its kind tag.
func (s *OtpService) Verify(ctx context.Context, email, code string) (kind string, payload json.RawMessage, err error) {
	stored, err := s.get(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if stored.Code != code || stored.Email != email {
		return "", nil, apperr.ErrOtpInvalid
	}
	if err := s.rdb.Del(ctx, otpKey(email)).Err(); err != nil {
		return "", nil, err
	}
	return stored.Kind, stored.Payload, nil
}

func (s *OtpService) get(ctx context.Context, email string) (pendingOtp, error) {
	val, err := s.rdb.Get(ctx, otpKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pendingOtp{}, apperr.ErrOtpExpired
	}
	if err != nil {
		return pendingOtp{}, err
	}
	var stored pendingOtp
	if err := json.Unmarshal(val, &stored); err != nil {
		return pendingOtp{}, err
	}
	return stored, nil
}
