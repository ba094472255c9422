package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/apperr"
)

// RequireRole enforces that the resolved caller identity holds one of the
// given roles. It must run after RequireIdentity; the forbidden error is
// translated by the boundary error handler.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := CurrentIdentity(c)
			if id.UserID == 0 || !allowed[id.Role] {
				return apperr.ErrForbidden
			}
			return next(c)
		}
	}
}
