package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetos/identity/internal/apperr"
	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/queue"
	"github.com/fleetos/identity/internal/repository"
)

// TenantCandidate is an unverified tenant self-registration.
type TenantCandidate struct {
	Name         string        `json:"name"`
	Industry     string        `json:"industry,omitempty"`
	ContactEmail string        `json:"contact_email"`
	ContactPhone string        `json:"contact_phone,omitempty"`
	Address      model.Address `json:"address,omitempty"`
}

// TenantAdminCandidate registers the first administrator of an activated
// tenant, reached through the activation link.
type TenantAdminCandidate struct {
	TenantID string
	Name     string
	Email    string
	Password string
}

// TenantView is the public shape of a tenant record.
type TenantView struct {
	TenantID     string        `json:"tenantId"`
	Name         string        `json:"name"`
	Industry     string        `json:"industry,omitempty"`
	ContactEmail string        `json:"contactEmail"`
	ContactPhone string        `json:"contactPhone,omitempty"`
	Address      model.Address `json:"address,omitempty"`
	Status       string        `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// TenantPage is one page of tenant views plus paging metadata.
type TenantPage struct {
	Items      []TenantView `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
}

// TenantService orchestrates tenant self-registration and the
// administrator-driven lifecycle transitions.
type TenantService struct {
	cfg     config.Config
	tenants repository.TenantStore
	users   repository.UserStore
	otp     *OtpService
	auth    *AuthService
	notify  Notifier
}

func NewTenantService(cfg config.Config, tenants repository.TenantStore, users repository.UserStore,
	otp *OtpService, auth *AuthService, notify Notifier) *TenantService {
	return &TenantService{cfg: cfg, tenants: tenants, users: users, otp: otp, auth: auth, notify: notify}
}

func (s *TenantService) publish(ctx context.Context, ev queue.NotificationEvent) {
	if s.notify == nil {
		return
	}
	ev.IssuedAt = time.Now().UTC().Format(time.RFC3339)
	_ = s.notify(ctx, ev)
}

// RegisterTenant stages a tenant self-registration behind an OTP challenge
// keyed by the contact email.
func (s *TenantService) RegisterTenant(ctx context.Context, cand TenantCandidate) error {
	if _, err := s.tenants.GetByEmail(ctx, cand.ContactEmail); err == nil {
		return apperr.ErrTenantExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	code, err := s.otp.Issue(ctx, OtpKindTenant, cand.ContactEmail, cand)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:  queue.EventOtpIssued,
		Email: cand.ContactEmail,
		Name:  cand.Name,
		Code:  code,
	})
	return nil
}

// VerifyRegistration completes a staged tenant registration: the OTP must
// carry the "tenant" tag. The tenant row is created in PENDING_VERIFICATION
// with a freshly generated public tenant id.
func (s *TenantService) VerifyRegistration(ctx context.Context, email, code string) (TenantView, error) {
	kind, raw, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return TenantView{}, err
	}
	if kind != OtpKindTenant {
		return TenantView{}, apperr.ErrOtpType
	}
	var cand TenantCandidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		return TenantView{}, err
	}
	t := model.Tenant{
		TenantID:     uuid.NewString(),
		Name:         cand.Name,
		Industry:     cand.Industry,
		ContactEmail: cand.ContactEmail,
		ContactPhone: cand.ContactPhone,
		Address:      cand.Address,
		Status:       model.TenantStatusPending,
	}
	if _, err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return TenantView{}, apperr.ErrTenantExists
		}
		return TenantView{}, err
	}
	stored, err := s.tenants.GetByTenantID(ctx, t.TenantID)
	if err != nil {
		return TenantView{}, err
	}
	return toTenantView(stored), nil
}

// VerifyByAdmin transitions a pending tenant to ACTIVE. When the tenant has
// no admin account yet, the returned link lets the first administrator
// self-register; a re-activation with an existing admin returns an empty
// link. Terminal states are immutable.
func (s *TenantService) VerifyByAdmin(ctx context.Context, tenantID string) (string, error) {
	t, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	switch t.Status {
	case model.TenantStatusActive:
		return "", apperr.ErrTenantActive
	case model.TenantStatusRejected:
		return "", apperr.ErrTenantRejected
	}

	admins, err := s.users.CountByTenantAndRole(ctx, tenantID, model.RoleTenantAdmin)
	if err != nil {
		return "", err
	}
	if err := s.tenants.UpdateStatus(ctx, tenantID, model.TenantStatusActive); err != nil {
		return "", err
	}

	link := ""
	if admins == 0 {
		link = fmt.Sprintf("%s/register-admin?tenantId=%s", s.cfg.ClientURL, tenantID)
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:     queue.EventTenantStatusChanged,
		Email:    t.ContactEmail,
		TenantID: tenantID,
		Status:   model.TenantStatusActive,
		Link:     link,
	})
	return link, nil
}

// Reject transitions a pending tenant to REJECTED. Terminal states are
// immutable.
func (s *TenantService) Reject(ctx context.Context, tenantID string) error {
	t, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	switch t.Status {
	case model.TenantStatusRejected:
		return apperr.ErrTenantRejected
	case model.TenantStatusActive:
		return apperr.ErrTenantActive
	}
	if err := s.tenants.UpdateStatus(ctx, tenantID, model.TenantStatusRejected); err != nil {
		return err
	}
	s.publish(ctx, queue.NotificationEvent{
		Kind:     queue.EventTenantStatusChanged,
		Email:    t.ContactEmail,
		TenantID: tenantID,
		Status:   model.TenantStatusRejected,
	})
	return nil
}

// RegisterTenantAdmin stages the first administrator of a tenant. The
// tenant id must resolve; the role is fixed to TENANT_ADMIN.
func (s *TenantService) RegisterTenantAdmin(ctx context.Context, cand TenantAdminCandidate) error {
	if _, err := s.users.GetByEmail(ctx, cand.Email); err == nil {
		return apperr.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := s.tenants.GetByTenantID(ctx, cand.TenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrTenantMissing
		}
		return err
	}
	return s.auth.stageUser(ctx, UserCandidate{
		Name:     cand.Name,
		Email:    cand.Email,
		Password: cand.Password,
		Role:     model.RoleTenantAdmin,
		TenantID: cand.TenantID,
	})
}

// ListActive returns one page of ACTIVE tenants.
func (s *TenantService) ListActive(ctx context.Context, q repository.PageQuery) (TenantPage, error) {
	return s.list(ctx, model.TenantStatusActive, q)
}

// ListPending returns one page of tenants awaiting verification.
func (s *TenantService) ListPending(ctx context.Context, q repository.PageQuery) (TenantPage, error) {
	return s.list(ctx, model.TenantStatusPending, q)
}

// ListRejected returns one page of REJECTED tenants.
func (s *TenantService) ListRejected(ctx context.Context, q repository.PageQuery) (TenantPage, error) {
	return s.list(ctx, model.TenantStatusRejected, q)
}

func (s *TenantService) list(ctx context.Context, status string, q repository.PageQuery) (TenantPage, error) {
	q = q.Normalize()
	items, total, err := s.tenants.ListByStatus(ctx, status, q)
	if err != nil {
		return TenantPage{}, err
	}
	views := make([]TenantView, 0, len(items))
	for _, t := range items {
		views = append(views, toTenantView(t))
	}
	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return TenantPage{
		Items:      views,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *TenantService) getTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	t, err := s.tenants.GetByTenantID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Tenant{}, apperr.ErrTenantNotFound
	}
	return t, err
}

func toTenantView(t model.Tenant) TenantView {
	return TenantView{
		TenantID:     t.TenantID,
		Name:         t.Name,
		Industry:     t.Industry,
		ContactEmail: t.ContactEmail,
		ContactPhone: t.ContactPhone,
		Address:      t.Address,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
}
