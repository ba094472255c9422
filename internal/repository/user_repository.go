package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fleetos/identity/internal/model"
)

// UserStore is the durable contract for user records.
type UserStore interface {
	// Create inserts a user and returns its id. The PasswordHash field may
	// be invalid (NULL) for invited accounts.
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	// SetPassword replaces the password hash, activating an invited account.
	SetPassword(ctx context.Context, id uint64, hash string) error
	SetLastLogin(ctx context.Context, id uint64, at time.Time) error
	// CountByTenantAndRole reports how many users hold the given role inside
	// a tenant. Used to decide whether a first-admin activation link is due.
	CountByTenantAndRole(ctx context.Context, tenantID, role string) (int64, error)
}

// UserRepo is the MySQL implementation of UserStore.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,email,password_hash,name,role,tenant_id,is_active,last_login_at,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.TenantID, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, role, tenant_id, is_active) VALUES (?,?,?,?,?,?)",
		strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Name, u.Role, u.TenantID, u.IsActive)
	if err != nil {
		// MySQL 1062 = duplicate entry on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) SetPassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

func (r *UserRepo) SetLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

func (r *UserRepo) CountByTenantAndRole(ctx context.Context, tenantID, role string) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE tenant_id=? AND role=?", tenantID, role).Scan(&n)
	return n, err
}
