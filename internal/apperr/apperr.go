// Package apperr defines the application error type shared by services and
// handlers. Each error carries an HTTP status hint so the boundary error
// handler can translate domain failures into responses without the services
// knowing anything about HTTP.
package apperr

import "net/http"

// Error is a domain failure with an HTTP status hint.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an application error with the given status hint.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Sentinel errors for every failure kind the services raise. Handlers and
// tests compare against these with errors.Is.
var (
	ErrEmailExists      = New(http.StatusConflict, "email already registered")
	ErrTenantExists     = New(http.StatusConflict, "tenant already registered")
	ErrInvalidCreds     = New(http.StatusUnauthorized, "invalid email or password")
	ErrTenantNotActive  = New(http.StatusForbidden, "tenant not active")
	ErrTenantMissing    = New(http.StatusForbidden, "tenant not resolved for user")
	ErrOtpExpired       = New(http.StatusBadRequest, "otp expired or not found")
	ErrOtpInvalid       = New(http.StatusBadRequest, "invalid otp")
	ErrOtpType          = New(http.StatusBadRequest, "invalid otp type")
	ErrInvalidRefresh   = New(http.StatusUnauthorized, "invalid or expired refresh token")
	ErrInvalidInvite    = New(http.StatusBadRequest, "invalid or expired invite token")
	ErrTenantNotFound = New(http.StatusNotFound, "tenant not found")
	ErrTenantActive   = New(http.StatusConflict, "tenant already active")
	ErrTenantRejected = New(http.StatusConflict, "tenant already rejected")
	ErrUnauthorized   = New(http.StatusUnauthorized, "unauthorized")
	ErrForbidden      = New(http.StatusForbidden, "forbidden")
)
