package identityapi

import (
	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identitysrv"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// ClaimsHandlers exposes the administrative role management routes.
type ClaimsHandlers struct {
	claims *identitysrv.ClaimsManager
}

func NewClaimsHandlers(claims *identitysrv.ClaimsManager) *ClaimsHandlers {
	return &ClaimsHandlers{claims: claims}
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type grantPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type setOrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// RegisterRoutes mounts /api/v1/me and the admin-only claims routes.
func (h *ClaimsHandlers) RegisterRoutes(router fiber.Router, mw *Middleware) {
	router.Get("/api/v1/me", mw.Authenticate(), h.Me)

	identities := router.Group("/api/v1/identities", mw.Authenticate(), mw.RequireRole(identity.RoleAdmin))
	identities.Get("/:id/claims", h.GetClaims)
	identities.Put("/:id/role", h.SetRole)
	identities.Post("/:id/permissions", h.GrantPermissions)
	identities.Put("/:id/organization", h.SetOrganization)
}

func (h *ClaimsHandlers) Me(c *fiber.Ctx) error {
	principal, ok := Principal(c)
	if !ok {
		return ErrRegistry.New(CodeUnauthenticated)
	}
	return c.JSON(principal)
}

func (h *ClaimsHandlers) GetClaims(c *fiber.Ctx) error {
	claims, err := h.claims.GetClaims(c.UserContext(), kernel.NewIdentityID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(claims)
}

func (h *ClaimsHandlers) SetRole(c *fiber.Ctx) error {
	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	id := kernel.NewIdentityID(c.Params("id"))
	if err := h.claims.SetRole(c.UserContext(), id, req.Role); err != nil {
		return err
	}
	return h.respondClaims(c, id)
}

func (h *ClaimsHandlers) GrantPermissions(c *fiber.Ctx) error {
	var req grantPermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	if len(req.Permissions) == 0 {
		return errx.Validation("permissions must not be empty")
	}
	id := kernel.NewIdentityID(c.Params("id"))
	if err := h.claims.GrantPermissions(c.UserContext(), id, req.Permissions...); err != nil {
		return err
	}
	return h.respondClaims(c, id)
}

func (h *ClaimsHandlers) SetOrganization(c *fiber.Ctx) error {
	var req setOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	id := kernel.NewIdentityID(c.Params("id"))
	if err := h.claims.SetOrganization(c.UserContext(), id, kernel.OrganizationID(req.OrganizationID)); err != nil {
		return err
	}
	return h.respondClaims(c, id)
}

func (h *ClaimsHandlers) respondClaims(c *fiber.Ctx, id kernel.IdentityID) error {
	claims, err := h.claims.GetClaims(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(claims)
}
