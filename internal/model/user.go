package model

import (
	"database/sql"
	"time"
)

// Role names carried in the users.role column and in JWT claims.
// PLATFORM_ADMIN accounts are not scoped to a tenant; every other
// role requires a tenant reference.
const (
	RolePlatformAdmin     = "PLATFORM_ADMIN"
	RoleTenantAdmin       = "TENANT_ADMIN"
	RoleOperationsManager = "OPERATIONS_MANAGER"
	RoleWarehouseManager  = "WAREHOUSE_MANAGER"
	RoleDriver            = "DRIVER"
)

// KnownRole reports whether s is one of the role names above.
func KnownRole(s string) bool {
	switch s {
	case RolePlatformAdmin, RoleTenantAdmin, RoleOperationsManager, RoleWarehouseManager, RoleDriver:
		return true
	}
	return false
}

// User mirrors the `users` table.
//
// PasswordHash is nullable: a NULL hash marks an invited account that has
// not accepted its invite yet. TenantID is empty for platform admins.
type User struct {
	ID           uint64         // users.id
	Email        string         // users.email (unique, lowercased)
	PasswordHash sql.NullString // users.password_hash (NULL until invite accepted)
	Name         string         // users.name
	Role         string         // users.role
	TenantID     sql.NullString // users.tenant_id (NULL for platform admins)
	IsActive     bool           // users.is_active
	LastLoginAt  sql.NullTime   // users.last_login_at
	CreatedAt    time.Time      // users.created_at
	UpdatedAt    time.Time      // users.updated_at
}
