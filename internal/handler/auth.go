// Package handler implements the HTTP surface of the identity core. The
// handlers bind and validate request shapes, delegate to the services and
// translate nothing themselves: domain errors propagate to the boundary
// error handler.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/apperr"
	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/middleware"
	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/service"
)

// handlerTimeout bounds every downstream call made by a single request.
const handlerTimeout = 5 * time.Second

const refreshCookieName = "refreshToken"

// refreshCookiePath scopes the cookie to the auth group: both the refresh
// and logout endpoints read it.
const refreshCookiePath = "/v1/auth"

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Auth    *service.AuthService
	Tenants *service.TenantService
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService, tenants *service.TenantService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth, Tenants: tenants}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
}

type verifyOtpReq struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
	Type  string `json:"type"` // "user" | "tenant"
}

type resendOtpReq struct {
	Email string `json:"email"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type acceptInviteReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tenantRegisterReq struct {
	Name         string        `json:"name"`
	Industry     string        `json:"industry"`
	ContactEmail string        `json:"contactEmail"`
	ContactPhone string        `json:"contactPhone"`
	Address      model.Address `json:"address"`
}

type tenantAdminRegisterReq struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ----- helpers -----

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), handlerTimeout)
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// validPassword enforces the password policy: at least 8 characters, one
// uppercase letter and one digit.
func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, digit bool
	for _, r := range pw {
		upper = upper || unicode.IsUpper(r)
		digit = digit || unicode.IsDigit(r)
	}
	return upper && digit
}

func badRequest(msg string) error { return apperr.New(http.StatusBadRequest, msg) }

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  exp,
		MaxAge:   int(time.Until(exp) / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.Cfg.Env != "dev",
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.Cfg.Env != "dev",
	})
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to
// a JSON body for clients that do not keep cookies.
func refreshTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(refreshCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.Bind(&body)
	return strings.TrimSpace(body.RefreshToken)
}

// ----- endpoints -----

// Register stages a staff/user registration behind an OTP challenge.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.Email = normEmail(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Name == "" || req.Email == "" {
		return badRequest("name and email required")
	}
	if !validPassword(req.Password) {
		return badRequest("password must be at least 8 characters with an uppercase letter and a digit")
	}
	if !model.KnownRole(req.Role) || req.Role == model.RolePlatformAdmin {
		return badRequest("invalid role")
	}
	if req.TenantID == "" {
		return badRequest("tenantId required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Register(ctx, service.UserCandidate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		TenantID: req.TenantID,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "otp sent"})
}

// VerifyOtp completes a staged registration. The type field dispatches to
// the user or tenant flow.
func (h *AuthHandler) VerifyOtp(c echo.Context) error {
	var req verifyOtpReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.Email = normEmail(req.Email)
	if req.Email == "" || req.Otp == "" {
		return badRequest("email and otp required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	switch req.Type {
	case service.OtpKindTenant:
		view, err := h.Tenants.VerifyRegistration(ctx, req.Email, req.Otp)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "tenant registered", "result": view})
	case service.OtpKindUser:
		user, err := h.Auth.VerifyAndRegister(ctx, req.Email, req.Otp)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "user registered", "result": user})
	default:
		return apperr.ErrOtpType
	}
}

// ResendOtp re-issues the pending challenge for an email.
func (h *AuthHandler) ResendOtp(c echo.Context) error {
	var req resendOtpReq
	if err := c.Bind(&req); err != nil || normEmail(req.Email) == "" {
		return badRequest("email required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.ResendOtp(ctx, normEmail(req.Email)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "otp sent"})
}

// Login verifies credentials, sets the refresh cookie and returns the
// access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.Email = normEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return badRequest("email and password required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExp)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged in",
		"data": echo.Map{
			"accessToken": pair.AccessToken,
			"expiresAt":   pair.AccessExp,
		},
	})
}

// Refresh rotates the refresh token from the cookie and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := refreshTokenFrom(c)
	if token == "" {
		return apperr.ErrInvalidRefresh
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, token)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExp)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "tokens rotated",
		"data": echo.Map{
			"accessToken": pair.AccessToken,
			"expiresAt":   pair.AccessExp,
		},
	})
}

// Logout revokes the presented refresh token and clears the cookie.
// Revoking an already-gone token still succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := refreshTokenFrom(c)
	if token == "" {
		return apperr.ErrInvalidRefresh
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, token); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// LogoutAll deletes every session of the authenticated caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	id := middleware.CurrentIdentity(c)
	if id.UserID == 0 {
		return apperr.ErrUnauthorized
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.LogoutAll(ctx, id.UserID); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere"})
}

// AcceptInvite sets the password of an invited account, consuming the
// single-use invite token.
func (h *AuthHandler) AcceptInvite(c echo.Context) error {
	var req acceptInviteReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return badRequest("token required")
	}
	if !validPassword(req.Password) {
		return badRequest("password must be at least 8 characters with an uppercase letter and a digit")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.AcceptInvite(ctx, strings.TrimSpace(req.Token), req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password set"})
}

// RegisterTenant stages a tenant self-registration behind an OTP challenge.
func (h *AuthHandler) RegisterTenant(c echo.Context) error {
	var req tenantRegisterReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.ContactEmail = normEmail(req.ContactEmail)
	if req.Name == "" || req.ContactEmail == "" {
		return badRequest("name and contactEmail required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tenants.RegisterTenant(ctx, service.TenantCandidate{
		Name:         req.Name,
		Industry:     req.Industry,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "otp sent"})
}

// RegisterTenantAdmin stages the first administrator of an activated
// tenant.
func (h *AuthHandler) RegisterTenantAdmin(c echo.Context) error {
	var req tenantAdminRegisterReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.Email = normEmail(req.Email)
	if req.TenantID == "" || req.Name == "" || req.Email == "" {
		return badRequest("tenantId, name and email required")
	}
	if !validPassword(req.Password) {
		return badRequest("password must be at least 8 characters with an uppercase letter and a digit")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tenants.RegisterTenantAdmin(ctx, service.TenantAdminCandidate{
		TenantID: req.TenantID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "otp sent"})
}
