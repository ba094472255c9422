package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fleetos/identity/internal/apperr"
	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/repository"
)

// registerTenant walks a full tenant self-registration and returns the
// created PENDING view.
func registerTenant(t *testing.T, env *testEnv, name, email string) TenantView {
	t.Helper()
	ctx := context.Background()
	err := env.tenant.RegisterTenant(ctx, TenantCandidate{
		Name:         name,
		Industry:     "logistics",
		ContactEmail: email,
		Address:      model.Address{City: "Rotterdam", Country: "NL"},
	})
	if err != nil {
		t.Fatalf("register tenant: %v", err)
	}
	view, err := env.tenant.VerifyRegistration(ctx, email, env.rec.lastCode(t, email))
	if err != nil {
		t.Fatalf("verify tenant registration: %v", err)
	}
	return view
}

func TestTenantRegistrationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	view := registerTenant(t, env, "Acme Logistics", "ops@acme.example")
	if view.Status != model.TenantStatusPending {
		t.Fatalf("status = %q, want %q", view.Status, model.TenantStatusPending)
	}
	if view.TenantID == "" {
		t.Fatal("no tenant id assigned")
	}
	if view.Address.City != "Rotterdam" {
		t.Fatalf("address lost through staging: %+v", view.Address)
	}

	stored, err := env.tenants.GetByTenantID(ctx, view.TenantID)
	if err != nil {
		t.Fatalf("tenant missing after verification: %v", err)
	}
	if stored.Status != model.TenantStatusPending {
		t.Fatalf("stored status = %q, want pending", stored.Status)
	}
	// The view reflects the stored row, not a value recomputed after the
	// insert.
	if view.CreatedAt.IsZero() || !view.CreatedAt.Equal(stored.CreatedAt) {
		t.Fatalf("view createdAt = %v, stored = %v", view.CreatedAt, stored.CreatedAt)
	}
}

func TestTenantRegistrationConflict(t *testing.T) {
	env := newTestEnv(t)

	registerTenant(t, env, "Acme", "ops@acme.example")
	err := env.tenant.RegisterTenant(context.Background(), TenantCandidate{
		Name:         "Acme Clone",
		ContactEmail: "ops@acme.example",
	})
	if !errors.Is(err, apperr.ErrTenantExists) {
		t.Fatalf("register err = %v, want ErrTenantExists", err)
	}
}

func TestTenantVerifyRegistrationRejectsUserChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.otp.Issue(ctx, OtpKindUser, "dana@example.com", userPayload{Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := env.tenant.VerifyRegistration(ctx, "dana@example.com", code); !errors.Is(err, apperr.ErrOtpType) {
		t.Fatalf("verify err = %v, want ErrOtpType", err)
	}
}

func TestVerifyByAdminActivatesWithLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := registerTenant(t, env, "Acme", "ops@acme.example")

	link, err := env.tenant.VerifyByAdmin(ctx, view.TenantID)
	if err != nil {
		t.Fatalf("verify by admin: %v", err)
	}
	want := fmt.Sprintf("%s/register-admin?tenantId=%s", env.cfg.ClientURL, view.TenantID)
	if link != want {
		t.Fatalf("link = %q, want %q", link, want)
	}

	stored, err := env.tenants.GetByTenantID(ctx, view.TenantID)
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if stored.Status != model.TenantStatusActive {
		t.Fatalf("status = %q, want active", stored.Status)
	}
}

func TestVerifyByAdminNoLinkWhenAdminExists(t *testing.T) {
	env := newTestEnv(t)
	view := registerTenant(t, env, "Acme", "ops@acme.example")
	env.registerActiveUser(t, "admin@acme.example", testPassword, model.RoleTenantAdmin, view.TenantID)

	link, err := env.tenant.VerifyByAdmin(context.Background(), view.TenantID)
	if err != nil {
		t.Fatalf("verify by admin: %v", err)
	}
	if link != "" {
		t.Fatalf("link = %q, want empty when an admin already exists", link)
	}
}

func TestTenantTerminalStatesImmutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active := registerTenant(t, env, "Active Co", "active@example.com")
	if _, err := env.tenant.VerifyByAdmin(ctx, active.TenantID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	rejected := registerTenant(t, env, "Rejected Co", "rejected@example.com")
	if err := env.tenant.Reject(ctx, rejected.TenantID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if _, err := env.tenant.VerifyByAdmin(ctx, active.TenantID); !errors.Is(err, apperr.ErrTenantActive) {
		t.Fatalf("re-activate err = %v, want ErrTenantActive", err)
	}
	if err := env.tenant.Reject(ctx, active.TenantID); !errors.Is(err, apperr.ErrTenantActive) {
		t.Fatalf("reject active err = %v, want ErrTenantActive", err)
	}
	if _, err := env.tenant.VerifyByAdmin(ctx, rejected.TenantID); !errors.Is(err, apperr.ErrTenantRejected) {
		t.Fatalf("activate rejected err = %v, want ErrTenantRejected", err)
	}
	if err := env.tenant.Reject(ctx, rejected.TenantID); !errors.Is(err, apperr.ErrTenantRejected) {
		t.Fatalf("re-reject err = %v, want ErrTenantRejected", err)
	}
}

func TestTenantLifecycleUnknownID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.tenant.VerifyByAdmin(ctx, "no-such-id"); !errors.Is(err, apperr.ErrTenantNotFound) {
		t.Fatalf("verify err = %v, want ErrTenantNotFound", err)
	}
	if err := env.tenant.Reject(ctx, "no-such-id"); !errors.Is(err, apperr.ErrTenantNotFound) {
		t.Fatalf("reject err = %v, want ErrTenantNotFound", err)
	}
}

func TestRegisterTenantAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	view := registerTenant(t, env, "Acme", "ops@acme.example")
	if _, err := env.tenant.VerifyByAdmin(ctx, view.TenantID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	err := env.tenant.RegisterTenantAdmin(ctx, TenantAdminCandidate{
		TenantID: view.TenantID,
		Name:     "Admin",
		Email:    "admin@acme.example",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register tenant admin: %v", err)
	}
	user, err := env.auth.VerifyAndRegister(ctx, "admin@acme.example", env.rec.lastCode(t, "admin@acme.example"))
	if err != nil {
		t.Fatalf("verify admin registration: %v", err)
	}
	if user.Role != model.RoleTenantAdmin {
		t.Fatalf("role = %q, want %q", user.Role, model.RoleTenantAdmin)
	}
	stored, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.TenantID.String != view.TenantID {
		t.Fatalf("tenant id = %q, want %q", stored.TenantID.String, view.TenantID)
	}

	// Login must work now that the tenant is active.
	if _, err := env.auth.Login(ctx, "admin@acme.example", testPassword); err != nil {
		t.Fatalf("admin login: %v", err)
	}
}

func TestRegisterTenantAdminUnknownTenant(t *testing.T) {
	env := newTestEnv(t)

	err := env.tenant.RegisterTenantAdmin(context.Background(), TenantAdminCandidate{
		TenantID: "no-such-id",
		Name:     "Admin",
		Email:    "admin@acme.example",
		Password: testPassword,
	})
	if !errors.Is(err, apperr.ErrTenantMissing) {
		t.Fatalf("register err = %v, want ErrTenantMissing", err)
	}
}

func TestTenantListPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		view := registerTenant(t, env, fmt.Sprintf("Fleet %02d", i), fmt.Sprintf("fleet%02d@example.com", i))
		if _, err := env.tenant.VerifyByAdmin(ctx, view.TenantID); err != nil {
			t.Fatalf("activate %d: %v", i, err)
		}
	}
	registerTenant(t, env, "Still Pending", "pending@example.com")

	page, err := env.tenant.ListActive(ctx, repository.PageQuery{Page: 2, Limit: 3})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if page.Total != 7 || page.TotalPages != 3 || page.Page != 2 || len(page.Items) != 3 {
		t.Fatalf("page = total %d pages %d page %d len %d", page.Total, page.TotalPages, page.Page, len(page.Items))
	}
	for _, v := range page.Items {
		if v.Status != model.TenantStatusActive {
			t.Fatalf("non-active tenant %q in active listing", v.TenantID)
		}
	}

	pending, err := env.tenant.ListPending(ctx, repository.PageQuery{})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if pending.Total != 1 || pending.Items[0].Name != "Still Pending" {
		t.Fatalf("pending listing = %+v", pending)
	}
}

func TestTenantListSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"Northwind Freight", "Acme Logistics", "Northern Lights"} {
		email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
		view := registerTenant(t, env, name, email)
		if _, err := env.tenant.VerifyByAdmin(ctx, view.TenantID); err != nil {
			t.Fatalf("activate %s: %v", name, err)
		}
	}

	page, err := env.tenant.ListActive(ctx, repository.PageQuery{Search: "north"})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("search total = %d, want 2", page.Total)
	}
	for _, v := range page.Items {
		if !strings.Contains(strings.ToLower(v.Name), "north") {
			t.Fatalf("unexpected match %q", v.Name)
		}
	}
}
