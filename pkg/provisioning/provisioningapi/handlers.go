package provisioningapi

import (
	"net/url"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identityapi"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
	"github.com/Abraxas-365/provisioning/pkg/provisioning/provisioningsrv"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the orchestrator to administrators and operators.
type Handlers struct {
	orchestrator *provisioningsrv.Orchestrator
}

func NewHandlers(orchestrator *provisioningsrv.Orchestrator) *Handlers {
	return &Handlers{orchestrator: orchestrator}
}

type emailCredentialRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

type usernameCredentialRequest struct {
	Username    string                `json:"username"`
	Type        profile.PrincipalType `json:"type"`
	NewPassword string                `json:"new_password"`
}

// RegisterRoutes mounts /api/v1/principals. Every route needs an operator
// or admin; deleting needs an admin.
func (h *Handlers) RegisterRoutes(router fiber.Router, mw *identityapi.Middleware) {
	g := router.Group("/api/v1/principals",
		mw.Authenticate(),
		mw.RequireRole(identity.RoleAdmin, identity.RoleOperator),
	)
	g.Post("/", h.Create)
	g.Post("/credentials/email", h.ChangeCredentialByEmail)
	g.Post("/credentials/username", h.ChangeCredentialByUsername)
	g.Get("/:identity_ref", h.Get)
	g.Patch("/:identity_ref", h.Update)
	g.Post("/:identity_ref/disable", h.Disable)
	g.Delete("/:identity_ref", mw.RequireRole(identity.RoleAdmin), h.Delete)
}

func identityRefParam(c *fiber.Ctx) kernel.IdentityID {
	raw := c.Params("identity_ref")
	if ref, err := url.PathUnescape(raw); err == nil {
		return kernel.NewIdentityID(ref)
	}
	return kernel.NewIdentityID(raw)
}

func (h *Handlers) Create(c *fiber.Ctx) error {
	var req provisioning.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return provisioning.ErrInvalidRequest("invalid request body").WithCause(err)
	}
	user, err := h.orchestrator.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	user, err := h.orchestrator.Get(c.UserContext(), identityRefParam(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Handlers) Update(c *fiber.Ctx) error {
	var patch profile.Patch
	if err := c.BodyParser(&patch); err != nil {
		return provisioning.ErrInvalidPatch("invalid request body").WithCause(err)
	}
	user, err := h.orchestrator.Update(c.UserContext(), identityRefParam(c), patch)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Handlers) Disable(c *fiber.Ctx) error {
	user, err := h.orchestrator.Disable(c.UserContext(), identityRefParam(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.orchestrator.Delete(c.UserContext(), identityRefParam(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) ChangeCredentialByEmail(c *fiber.Ctx) error {
	var req emailCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return provisioning.ErrInvalidRequest("invalid request body").WithCause(err)
	}
	result, err := h.orchestrator.ChangeCredentialByEmail(c.UserContext(), req.Email, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handlers) ChangeCredentialByUsername(c *fiber.Ctx) error {
	var req usernameCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return provisioning.ErrInvalidRequest("invalid request body").WithCause(err)
	}
	result, err := h.orchestrator.ChangeCredentialByUsername(c.UserContext(), req.Username, req.Type, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
