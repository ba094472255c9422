// Package repository provides durable storage for users, tenants and
// refresh-token sessions. Each store is an interface so the services can be
// exercised against in-memory fakes; the SQL implementations in this
// package are the production backing.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. SQL implementations
// translate sql.ErrNoRows into this so callers never depend on database/sql.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates a unique email or
// contact email constraint.
var ErrEmailExists = errors.New("email already exists")
