package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/model"
	"github.com/fleetos/identity/internal/repository"
	"github.com/fleetos/identity/internal/service"
)

// TenantHandler bundles the platform-admin endpoints: tenant lifecycle
// transitions, tenant listings and staff invites.
type TenantHandler struct {
	Tenants *service.TenantService
	Auth    *service.AuthService
}

func NewTenantHandler(tenants *service.TenantService, auth *service.AuthService) *TenantHandler {
	return &TenantHandler{Tenants: tenants, Auth: auth}
}

type inviteUserReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
}

// Verify activates a pending tenant. The response carries the activation
// link for the first administrator when no admin account exists yet.
func (h *TenantHandler) Verify(c echo.Context) error {
	tenantID := c.Param("tenantId")

	ctx, cancel := reqCtx(c)
	defer cancel()

	link, err := h.Tenants.VerifyByAdmin(ctx, tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tenant activated", "tenantLink": link})
}

// Reject moves a pending tenant to REJECTED.
func (h *TenantHandler) Reject(c echo.Context) error {
	tenantID := c.Param("tenantId")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tenants.Reject(ctx, tenantID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tenant rejected"})
}

// List returns one page of tenants filtered by the status query parameter
// (active by default; pending|rejected otherwise), with optional search.
func (h *TenantHandler) List(c echo.Context) error {
	q := pageQueryFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		page service.TenantPage
		err  error
	)
	switch strings.ToLower(c.QueryParam("status")) {
	case "", "active":
		page, err = h.Tenants.ListActive(ctx, q)
	case "pending":
		page, err = h.Tenants.ListPending(ctx, q)
	case "rejected":
		page, err = h.Tenants.ListRejected(ctx, q)
	default:
		return badRequest("status must be active, pending or rejected")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// InviteUser creates a passwordless staff account and issues an invite
// grant for it.
func (h *TenantHandler) InviteUser(c echo.Context) error {
	var req inviteUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	req.Email = normEmail(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Name == "" || req.Email == "" {
		return badRequest("name and email required")
	}
	if !model.KnownRole(req.Role) || req.Role == model.RolePlatformAdmin {
		return badRequest("invalid role")
	}
	if req.TenantID == "" {
		return badRequest("tenantId required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.CreateInvite(ctx, service.InviteCandidate{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		TenantID: req.TenantID,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "invite sent"})
}

func pageQueryFrom(c echo.Context) repository.PageQuery {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.PageQuery{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(c.QueryParam("search")),
	}.Normalize()
}
