package model

import "time"

// Tenant lifecycle states. A tenant is created in PENDING_VERIFICATION and
// moves to exactly one of the terminal states via a platform-admin action.
const (
	TenantStatusPending  = "PENDING_VERIFICATION"
	TenantStatusActive   = "ACTIVE"
	TenantStatusRejected = "REJECTED"
)

// Address is the optional postal address block of a tenant.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Tenant mirrors the `tenants` table. TenantID is the public UUID handed
// out to clients and embedded in token claims; ID is the internal row id.
type Tenant struct {
	ID           uint64    // tenants.id
	TenantID     string    // tenants.tenant_id (UUID, unique)
	Name         string    // tenants.name
	Industry     string    // tenants.industry (optional)
	ContactEmail string    // tenants.contact_email (unique, lowercased)
	ContactPhone string    // tenants.contact_phone (optional)
	Address      Address   // tenants.address_* columns
	Status       string    // tenants.status
	CreatedAt    time.Time // tenants.created_at
	UpdatedAt    time.Time // tenants.updated_at
}
