// Package middleware provides shared request processing for handlers:
// caller identity resolution, role enforcement and rate limiting.
package middleware

import (
	"crypto/rsa"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/utils"
)

// Identity is the authenticated caller as resolved from the upstream
// gateway headers or, failing that, from a verified bearer token.
type Identity struct {
	UserID   uint64
	Email    string
	Role     string
	TenantID string
}

const identityKey = "identity"

// CurrentIdentity returns the caller identity stored by RequireIdentity.
// The zero Identity is returned when the middleware did not run.
func CurrentIdentity(c echo.Context) Identity {
	if v, ok := c.Get(identityKey).(Identity); ok {
		return v
	}
	return Identity{}
}

// RequireIdentity resolves the caller identity and stores it in the
// request context. The trusted gateway injects X-User-Id, X-User-Email and
// X-User-Role (plus X-Tenant-Id for tenant-scoped users); when those are
// absent the middleware falls back to verifying a Bearer access token with
// the service's own public key, so direct calls keep working in
// development.
func RequireIdentity(pub *rsa.PublicKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id, ok := identityFromHeaders(c); ok {
				c.Set(identityKey, id)
				return next(c)
			}
			if id, ok := identityFromBearer(c, pub); ok {
				c.Set(identityKey, id)
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
	}
}

func identityFromHeaders(c echo.Context) (Identity, bool) {
	h := c.Request().Header
	rawID := h.Get("X-User-Id")
	email := h.Get("X-User-Email")
	role := h.Get("X-User-Role")
	if rawID == "" || email == "" || role == "" {
		return Identity{}, false
	}
	uid, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		UserID:   uid,
		Email:    email,
		Role:     role,
		TenantID: h.Get("X-Tenant-Id"),
	}, true
}

func identityFromBearer(c echo.Context, pub *rsa.PublicKey) (Identity, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return Identity{}, false
	}
	claims, err := utils.VerifyToken(pub, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return Identity{}, false
	}
	uid, err := claims.UserID()
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		UserID:   uid,
		Email:    claims.Email,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, true
}
