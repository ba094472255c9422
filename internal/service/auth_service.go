package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetos/identity/internal/apperr"
	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/queue"
	"github.com/fleetos/identity/internal/repository"
	"github.com/fleetos/identity/internal/utils"
)

const (
	inviteKeyPrefix = "invite:"
	inviteTTL       = 24 * time.Hour
)

// Notifier delivers a notification event to the broker. A nil Notifier
// disables publishing (tests); delivery failures never fail the request.
type Notifier func(ctx context.Context, ev queue.NotificationEvent) error

// UserCandidate is an unverified registration: everything needed to create
// the user once the email is proven.
type UserCandidate struct {
	Name     string
	Email    string
	Password string
	Role     string
	TenantID string
}

// userPayload is the staged form of a UserCandidate, password already
// hashed. It lives only in the TTL store.
type userPayload struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
	TenantID     string `json:"tenant_id,omitempty"`
}

// AuthUser is the public identity view returned after registration.
type AuthUser struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenPair is a freshly minted access/refresh credential pair.
type TokenPair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// InviteCandidate describes a staff account created by an administrator.
// No password is chosen at creation; the invite flow sets it later.
type InviteCandidate struct {
	Name     string
	Email    string
	Role     string
	TenantID string
}

// AuthService orchestrates registration, login, token rotation, logout and
// invite acceptance.
type AuthService struct {
	cfg     config.Config
	users   repository.UserStore
	tenants repository.TenantStore
	tokens  repository.TokenStore
	otp     *OtpService
	rdb     *redis.Client
	notify  Notifier
}

func NewAuthService(cfg config.Config, users repository.UserStore, tenants repository.TenantStore,
	tokens repository.TokenStore, otp *OtpService, rdb *redis.Client, notify Notifier) *AuthService {
	return &AuthService{cfg: cfg, users: users, tenants: tenants, tokens: tokens, otp: otp, rdb: rdb, notify: notify}
}

func (s *AuthService) publish(ctx context.Context, ev queue.NotificationEvent) {
	if s.notify == nil {
		return
	}
	ev.IssuedAt = time.Now().UTC().Format(time.RFC3339)
	_ = s.notify(ctx, ev) // best effort; the publisher logs failures
}

// Register stages a user registration behind an OTP challenge. Nothing is
// written durably until the code is verified.
func (s *AuthService) Register(ctx context.Context, cand UserCandidate) error {
	if _, err := s.users.GetByEmail(ctx, cand.Email); err == nil {
		return apperr.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return s.stageUser(ctx, cand)
}

// stageUser hashes the candidate password and hands the payload to the OTP
// engine tagged "user". Shared with tenant-admin registration.
func (s *AuthService) stageUser(ctx context.Context, cand UserCandidate) error {
	hash, err := utils.HashPassword(cand.Password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	code, err := s.otp.Issue(ctx, OtpKindUser, cand.Email, userPayload{
		Email:        cand.Email,
		Name:         cand.Name,
		PasswordHash: hash,
		Role:         cand.Role,
		TenantID:     cand.TenantID,
	})
	if err != nil {
		return err
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:  queue.EventOtpIssued,
		Email: cand.Email,
		Name:  cand.Name,
		Code:  code,
	})
	return nil
}

// VerifyAndRegister completes a staged user registration: the OTP must
// match and carry the "user" tag, then the durable user row is created.
func (s *AuthService) VerifyAndRegister(ctx context.Context, email, code string) (AuthUser, error) {
	kind, raw, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return AuthUser{}, err
	}
	if kind != OtpKindUser {
		return AuthUser{}, apperr.ErrOtpType
	}
	var p userPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return AuthUser{}, err
	}
	id, err := s.users.Create(ctx, model.User{
		Email:        p.Email,
		PasswordHash: sql.NullString{String: p.PasswordHash, Valid: true},
		Name:         p.Name,
		Role:         p.Role,
		TenantID:     sql.NullString{String: p.TenantID, Valid: p.TenantID != ""},
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return AuthUser{}, apperr.ErrEmailExists
		}
		return AuthUser{}, err
	}
	return AuthUser{ID: id, Email: p.Email, Role: p.Role}, nil
}

// Login verifies credentials and mints a token pair. Unknown email and
// wrong password produce the identical error so accounts cannot be
// enumerated. Non-platform-admin users must belong to an ACTIVE tenant.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperr.ErrInvalidCreds
	}
	if err != nil {
		return TokenPair{}, err
	}
	// A NULL hash is an invited account that never accepted its invite.
	if !u.PasswordHash.Valid || !utils.VerifyPassword(u.PasswordHash.String, password) {
		return TokenPair{}, apperr.ErrInvalidCreds
	}

	if u.Role != model.RolePlatformAdmin {
		if !u.TenantID.Valid || u.TenantID.String == "" {
			return TokenPair{}, apperr.ErrTenantMissing
		}
		t, err := s.tenants.GetByTenantID(ctx, u.TenantID.String)
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, apperr.ErrTenantNotActive
		}
		if err != nil {
			return TokenPair{}, err
		}
		if t.Status != model.TenantStatusActive {
			return TokenPair{}, apperr.ErrTenantNotActive
		}
	}

	pair, err := s.mintPair(u.ID, u.Email, u.Role, u.TenantID.String)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		log.Printf("auth: set last login for user %d failed: %v", u.ID, err)
	}
	return pair, nil
}

// mintPair signs an access/refresh pair from one claim set. The refresh
// token's embedded expiry is what the session record mirrors.
func (s *AuthService) mintPair(userID uint64, email, role, tenantID string) (TokenPair, error) {
	access, err := utils.NewToken(s.cfg.PrivateKey, userID, email, role, tenantID,
		time.Duration(s.cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewToken(s.cfg.PrivateKey, userID, email, role, tenantID,
		time.Duration(s.cfg.RefreshTTLDays)*24*time.Hour)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access.Token,
		AccessExp:    access.Exp,
		RefreshToken: refresh.Token,
		RefreshExp:   refresh.Exp,
	}, nil
}

// Refresh rotates a refresh token. Each token is single use: presenting a
// token whose session record is missing or already revoked is treated as
// theft and every session for the subject is deleted.
func (s *AuthService) Refresh(ctx context.Context, token string) (TokenPair, error) {
	claims, err := utils.DecodeClaims(token)
	if err != nil {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	userID, err := claims.UserID()
	if err != nil {
		return TokenPair{}, apperr.ErrInvalidRefresh
	}

	rec, err := s.tokens.FindByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && rec.Revoked) {
		// Reuse after revocation: invalidate the whole session family.
		if delErr := s.tokens.DeleteAllForUser(ctx, userID); delErr != nil {
			log.Printf("auth: purge sessions for user %d failed: %v", userID, delErr)
		}
		return TokenPair{}, apperr.ErrInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.tokens.Revoke(ctx, token); err != nil {
		return TokenPair{}, err
	}
	pair, err := s.mintPair(userID, claims.Email, claims.Role, claims.TenantID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, userID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes the session for the given refresh token. A token that is
// already gone is a no-op: logout never fails on an absent session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.tokens.FindByToken(ctx, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tokens.Revoke(ctx, token)
}

// LogoutAll deletes every session record for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteAllForUser(ctx, userID)
}

// CreateInvite persists a passwordless user and stores a single-use invite
// grant mapping an opaque token to the new user id.
func (s *AuthService) CreateInvite(ctx context.Context, cand InviteCandidate) error {
	if _, err := s.users.GetByEmail(ctx, cand.Email); err == nil {
		return apperr.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	id, err := s.users.Create(ctx, model.User{
		Email:    cand.Email,
		Name:     cand.Name,
		Role:     cand.Role,
		TenantID: sql.NullString{String: cand.TenantID, Valid: cand.TenantID != ""},
		IsActive: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.ErrEmailExists
		}
		return err
	}
	token, err := utils.NewInviteToken()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, inviteKeyPrefix+token, strconv.FormatUint(id, 10), inviteTTL).Err(); err != nil {
		return err
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:     queue.EventInviteCreated,
		Email:    cand.Email,
		Name:     cand.Name,
		Token:    token,
		TenantID: cand.TenantID,
	})
	return nil
}

// AcceptInvite consumes an invite grant: it sets the invited user's
// password and deletes the grant so a second acceptance fails.
func (s *AuthService) AcceptInvite(ctx context.Context, token, password string) error {
	val, err := s.rdb.Get(ctx, inviteKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return apperr.ErrInvalidInvite
	}
	if err != nil {
		return err
	}
	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return apperr.ErrInvalidInvite
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.rdb.Del(ctx, inviteKeyPrefix+token).Err()
}

// ResendOtp re-issues the pending challenge for the email and republishes
// the notification.
func (s *AuthService) ResendOtp(ctx context.Context, email string) error {
	_, code, err := s.otp.Resend(ctx, email)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:  queue.EventOtpIssued,
		Email: email,
		Code:  code,
	})
	return nil
}
