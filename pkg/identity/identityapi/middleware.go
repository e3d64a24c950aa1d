package identityapi

import (
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identitysrv"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

const (
	localsPrincipal = "principal"
	localsAuth      = "auth"
)

var ErrRegistry = errx.NewRegistry("ACCESS")

var (
	CodeUnauthenticated = ErrRegistry.Register("UNAUTHENTICATED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
	CodeForbidden       = ErrRegistry.Register("FORBIDDEN", errx.TypeAuthorization, http.StatusForbidden, "Insufficient role")
)

// Middleware authenticates inbound requests with bearer tokens.
type Middleware struct {
	validator *identitysrv.TokenValidator
}

func NewMiddleware(validator *identitysrv.TokenValidator) *Middleware {
	return &Middleware{validator: validator}
}

// Authenticate verifies the bearer token and stores the principal in the
// fiber locals and the request context.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		principal, err := m.validator.Validate(ctx, c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		token, _ := identitysrv.ParseBearer(c.Get(fiber.HeaderAuthorization))
		authContext := principal.ToAuthContext()

		ctx = kernel.WithAuthContext(ctx, authContext)
		ctx = kernel.WithBearerToken(ctx, token)
		ctx = logx.ContextWithFields(ctx, logx.Fields{"caller_id": principal.IdentityID})
		c.SetUserContext(ctx)

		c.Locals(localsPrincipal, principal)
		c.Locals(localsAuth, authContext)
		return c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func (m *Middleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := AuthContext(c)
		if !ok {
			return ErrRegistry.New(CodeUnauthenticated)
		}
		if !ac.HasAnyRole(roles...) {
			return ErrRegistry.New(CodeForbidden).WithDetail("required_roles", roles)
		}
		return c.Next()
	}
}

// RequirePermission lets the request through when the caller holds perm.
func (m *Middleware) RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := AuthContext(c)
		if !ok {
			return ErrRegistry.New(CodeUnauthenticated)
		}
		if !ac.HasPermission(perm) {
			return ErrRegistry.New(CodeForbidden).WithDetail("required_permission", perm)
		}
		return c.Next()
	}
}

// Principal returns the principal stored by Authenticate.
func Principal(c *fiber.Ctx) (*identity.AuthenticatedPrincipal, bool) {
	p, ok := c.Locals(localsPrincipal).(*identity.AuthenticatedPrincipal)
	return p, ok && p != nil
}

// AuthContext returns the kernel auth context stored by Authenticate.
func AuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(localsAuth).(*kernel.AuthContext)
	return ac, ok && ac != nil
}
