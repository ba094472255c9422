// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/handler"
	"github.com/fleetos/identity/internal/middleware"
	"github.com/fleetos/identity/internal/model"
)

// Register mounts every route of the service on the Echo instance.
//
// Unauthenticated flows live under /v1/auth behind the rate limiter.
// Session management that needs a caller identity (logout-all) and the
// platform-admin surface under /v1/admin run behind the identity
// middleware; admin routes additionally require the PLATFORM_ADMIN role.
func Register(e *echo.Echo, cfg config.Config, a *handler.AuthHandler, t *handler.TenantHandler, rdb *redis.Client) {
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(cfg.Env)

	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	auth.POST("/register", a.Register)
	auth.POST("/verify-otp", a.VerifyOtp)
	auth.POST("/resend-otp", a.ResendOtp)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)
	auth.POST("/register-tenant", a.RegisterTenant)
	auth.POST("/register-tenant-admin", a.RegisterTenantAdmin)
	auth.POST("/accept-invite", a.AcceptInvite)

	sess := e.Group("/v1/auth")
	sess.Use(middleware.RequireIdentity(cfg.PublicKey))
	sess.POST("/logout-all", a.LogoutAll)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.RequireIdentity(cfg.PublicKey))
	admin.Use(middleware.RequireRole(model.RolePlatformAdmin))
	admin.GET("/tenants", t.List)
	admin.POST("/tenants/:tenantId/verify", t.Verify)
	admin.POST("/tenants/:tenantId/reject", t.Reject)
	admin.POST("/users/invite", t.InviteUser)
}
