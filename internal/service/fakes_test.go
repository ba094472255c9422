package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/queue"
	"github.com/fleetos/identity/internal/repository"
)

// ----- in-memory repository fakes -----

type fakeUserStore struct {
	mu    sync.Mutex
	seq   uint64
	users map[uint64]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint64]model.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	f.seq++
	u.ID = f.seq
	u.CreatedAt = time.Now().UTC()
	f.users[u.ID] = u
	return u.ID, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) SetPassword(_ context.Context, id uint64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash.String = hash
	u.PasswordHash.Valid = true
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) SetLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt.Time = at
	u.LastLoginAt.Valid = true
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) CountByTenantAndRole(_ context.Context, tenantID, role string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.users {
		if u.TenantID.String == tenantID && u.Role == role {
			n++
		}
	}
	return n, nil
}

type fakeTenantStore struct {
	mu      sync.Mutex
	seq     uint64
	tenants map[string]model.Tenant // by public tenant id
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{tenants: map[string]model.Tenant{}}
}

func (f *fakeTenantStore) Create(_ context.Context, t model.Tenant) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tenants {
		if existing.ContactEmail == t.ContactEmail {
			return 0, repository.ErrEmailExists
		}
	}
	f.seq++
	t.ID = f.seq
	t.CreatedAt = time.Now().UTC()
	f.tenants[t.TenantID] = t
	return t.ID, nil
}

func (f *fakeTenantStore) GetByEmail(_ context.Context, contactEmail string) (model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contactEmail = strings.ToLower(strings.TrimSpace(contactEmail))
	for _, t := range f.tenants {
		if t.ContactEmail == contactEmail {
			return t, nil
		}
	}
	return model.Tenant{}, repository.ErrNotFound
}

func (f *fakeTenantStore) GetByTenantID(_ context.Context, tenantID string) (model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return model.Tenant{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) UpdateStatus(_ context.Context, tenantID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	f.tenants[tenantID] = t
	return nil
}

func (f *fakeTenantStore) ListByStatus(_ context.Context, status string, q repository.PageQuery) ([]model.Tenant, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q = q.Normalize()
	var matched []model.Tenant
	for _, t := range f.tenants {
		if t.Status != status {
			continue
		}
		if q.Search != "" {
			s := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(t.Name), s) &&
				!strings.Contains(strings.ToLower(t.ContactEmail), s) {
				continue
			}
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	seq    uint64
	tokens map[string]model.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]model.RefreshToken{}}
}

func (f *fakeTokenStore) Store(_ context.Context, userID uint64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.tokens[token] = model.RefreshToken{
		ID:        f.seq,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeTokenStore) FindByToken(_ context.Context, token string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokenStore) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil
	}
	t.Revoked = true
	f.tokens[token] = t
	return nil
}

func (f *fakeTokenStore) DeleteAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

func (f *fakeTokenStore) count(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// ----- notification capture -----

type eventRecorder struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
}

func (r *eventRecorder) notify(_ context.Context, ev queue.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// lastCode returns the most recently published OTP code for an email.
func (r *eventRecorder) lastCode(t *testing.T, email string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == queue.EventOtpIssued && r.events[i].Email == email {
			return r.events[i].Code
		}
	}
	t.Fatalf("no otp event recorded for %s", email)
	return ""
}

// lastInviteToken returns the most recently published invite token for an email.
func (r *eventRecorder) lastInviteToken(t *testing.T, email string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == queue.EventInviteCreated && r.events[i].Email == email {
			return r.events[i].Token
		}
	}
	t.Fatalf("no invite event recorded for %s", email)
	return ""
}

// ----- environment helper -----

type testEnv struct {
	cfg     config.Config
	users   *fakeUserStore
	tenants *fakeTenantStore
	tokens  *fakeTokenStore
	otp     *OtpService
	auth    *AuthService
	tenant  *TenantService
	rec     *eventRecorder
	mr      *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	cfg := config.Config{
		Env:            "dev",
		ClientURL:      "http://client.test",
		PrivateKey:     key,
		PublicKey:      &key.PublicKey,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}

	env := &testEnv{
		cfg:     cfg,
		users:   newFakeUserStore(),
		tenants: newFakeTenantStore(),
		tokens:  newFakeTokenStore(),
		rec:     &eventRecorder{},
		mr:      mr,
	}
	env.otp = NewOtpService(rdb)
	env.auth = NewAuthService(cfg, env.users, env.tenants, env.tokens, env.otp, rdb, env.rec.notify)
	env.tenant = NewTenantService(cfg, env.tenants, env.users, env.otp, env.auth, env.rec.notify)
	return env
}

// addTenant inserts a tenant directly into the fake store.
func (e *testEnv) addTenant(t *testing.T, tenantID, email, status string) {
	t.Helper()
	_, err := e.tenants.Create(context.Background(), model.Tenant{
		TenantID:     tenantID,
		Name:         "Tenant " + tenantID,
		ContactEmail: email,
		Status:       status,
	})
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
}

// registerActiveUser walks the full OTP registration for a user and returns
// its id.
func (e *testEnv) registerActiveUser(t *testing.T, email, password, role, tenantID string) uint64 {
	t.Helper()
	ctx := context.Background()
	err := e.auth.Register(ctx, UserCandidate{
		Name:     "Test User",
		Email:    email,
		Password: password,
		Role:     role,
		TenantID: tenantID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	user, err := e.auth.VerifyAndRegister(ctx, email, e.rec.lastCode(t, email))
	if err != nil {
		t.Fatalf("verify and register: %v", err)
	}
	return user.ID
}
