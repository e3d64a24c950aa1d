package profileapi

import (
	"crypto/subtle"
	"net/http"
	"net/url"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity/identitysrv"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/gofiber/fiber/v2"
)

var ErrRegistry = errx.NewRegistry("PROFILE_API")

var CodeServiceTokenRejected = ErrRegistry.Register("SERVICE_TOKEN_REJECTED", errx.TypeAuthorization, http.StatusUnauthorized, "Service token rejected")

// Handlers exposes a profile.Store over HTTP.
type Handlers struct {
	store profile.Store
}

func NewHandlers(store profile.Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes mounts /api/v1/profiles behind auth.
func (h *Handlers) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	g := router.Group("/api/v1/profiles", auth)
	g.Post("/", h.Create)
	g.Get("/", h.List)
	g.Get("/lookup", h.FindByUsername)
	g.Get("/:identity_ref", h.Get)
	g.Patch("/:identity_ref", h.Update)
	g.Delete("/:identity_ref", h.Delete)
}

// ServiceAuth accepts only the shared service token. An empty token
// disables the check.
func ServiceAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		got, err := identitysrv.ParseBearer(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return ErrRegistry.New(CodeServiceTokenRejected)
		}
		return c.Next()
	}
}

func identityRefParam(c *fiber.Ctx) kernel.IdentityID {
	raw := c.Params("identity_ref")
	if ref, err := url.PathUnescape(raw); err == nil {
		return kernel.NewIdentityID(ref)
	}
	return kernel.NewIdentityID(raw)
}

func (h *Handlers) Create(c *fiber.Ctx) error {
	var req profile.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return profile.ErrInvalidRequest("invalid request body").WithCause(err)
	}
	rec, err := h.store.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	rec, err := h.store.Get(c.UserContext(), identityRefParam(c))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *Handlers) Update(c *fiber.Ctx) error {
	var patch profile.Patch
	if err := c.BodyParser(&patch); err != nil {
		return profile.ErrInvalidRequest("invalid request body").WithCause(err)
	}
	rec, err := h.store.Update(c.UserContext(), identityRefParam(c), patch)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.UserContext(), identityRefParam(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) FindByUsername(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return profile.ErrInvalidRequest("username query parameter is required")
	}
	rec, err := h.store.FindByUsername(c.UserContext(), username, profile.PrincipalType(c.Query("type")))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *Handlers) List(c *fiber.Ctx) error {
	var filter profile.Filter
	if err := c.QueryParser(&filter); err != nil {
		return profile.ErrInvalidRequest("invalid filter").WithCause(err)
	}
	var opts kernel.PaginationOptions
	if err := c.QueryParser(&opts); err != nil {
		return profile.ErrInvalidRequest("invalid pagination").WithCause(err)
	}
	page, err := h.store.List(c.UserContext(), filter, opts)
	if err != nil {
		return err
	}
	return c.JSON(page)
}
