package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/fleetos/identity/internal/model"
)

// PageQuery defines pagination and an optional case-insensitive substring
// search over tenant name and contact email.
type PageQuery struct {
	Page   int
	Limit  int
	Search string
}

// Normalize clamps page/limit to sane values.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// TenantStore is the durable contract for tenant records.
type TenantStore interface {
	Create(ctx context.Context, t model.Tenant) (uint64, error)
	GetByEmail(ctx context.Context, contactEmail string) (model.Tenant, error)
	GetByTenantID(ctx context.Context, tenantID string) (model.Tenant, error)
	UpdateStatus(ctx context.Context, tenantID, status string) error
	// ListByStatus returns one page of tenants in the given status plus the
	// total match count.
	ListByStatus(ctx context.Context, status string, q PageQuery) ([]model.Tenant, int64, error)
}

// TenantRepo is the MySQL implementation of TenantStore.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

const tenantCols = "id,tenant_id,name,industry,contact_email,contact_phone," +
	"addr_line1,addr_city,addr_state,addr_postal_code,addr_country,status,created_at,updated_at"

func scanTenant(scan func(dest ...any) error) (model.Tenant, error) {
	var (
		t                                       model.Tenant
		industry, phone                         sql.NullString
		line1, city, state, postalCode, country sql.NullString
	)
	err := scan(&t.ID, &t.TenantID, &t.Name, &industry, &t.ContactEmail, &phone,
		&line1, &city, &state, &postalCode, &country, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tenant{}, ErrNotFound
	}
	if err != nil {
		return model.Tenant{}, err
	}
	t.Industry = industry.String
	t.ContactPhone = phone.String
	t.Address = model.Address{
		Line1:      line1.String,
		City:       city.String,
		State:      state.String,
		PostalCode: postalCode.String,
		Country:    country.String,
	}
	return t, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *TenantRepo) Create(ctx context.Context, t model.Tenant) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenants
		 (tenant_id, name, industry, contact_email, contact_phone,
		  addr_line1, addr_city, addr_state, addr_postal_code, addr_country, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.TenantID, t.Name, nullable(t.Industry),
		strings.ToLower(strings.TrimSpace(t.ContactEmail)), nullable(t.ContactPhone),
		nullable(t.Address.Line1), nullable(t.Address.City), nullable(t.Address.State),
		nullable(t.Address.PostalCode), nullable(t.Address.Country), t.Status)
	if err != nil {
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

func (r *TenantRepo) GetByEmail(ctx context.Context, contactEmail string) (model.Tenant, error) {
	contactEmail = strings.ToLower(strings.TrimSpace(contactEmail))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE contact_email=? LIMIT 1", contactEmail)
	return scanTenant(row.Scan)
}

func (r *TenantRepo) GetByTenantID(ctx context.Context, tenantID string) (model.Tenant, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE tenant_id=? LIMIT 1", tenantID)
	return scanTenant(row.Scan)
}

func (r *TenantRepo) UpdateStatus(ctx context.Context, tenantID, status string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE tenants SET status=? WHERE tenant_id=?", status, tenantID)
	return err
}

func (r *TenantRepo) ListByStatus(ctx context.Context, status string, q PageQuery) ([]model.Tenant, int64, error) {
	q = q.Normalize()

	cond := "status=?"
	args := []any{status}
	if q.Search != "" {
		cond += " AND (LOWER(name) LIKE ? OR LOWER(contact_email) LIKE ?)"
		pat := "%" + strings.ToLower(q.Search) + "%"
		args = append(args, pat, pat)
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tenants WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tenantCols+" FROM tenants WHERE "+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, q.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}
