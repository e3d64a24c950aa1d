package identityapi

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/gofiber/fiber/v2"
)

// PasswordSignIn issues a token for an email and password. Hosted providers
// run their own login flow; only the in-memory provider implements this.
type PasswordSignIn interface {
	SignIn(ctx context.Context, email, password string) (string, error)
}

// SignInHandlers serves the development login route.
type SignInHandlers struct {
	provider PasswordSignIn
}

func NewSignInHandlers(provider PasswordSignIn) *SignInHandlers {
	return &SignInHandlers{provider: provider}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	IDToken   string `json:"id_token"`
	TokenType string `json:"token_type"`
}

// RegisterRoutes mounts POST /api/v1/dev/sign-in.
func (h *SignInHandlers) RegisterRoutes(router fiber.Router) {
	router.Post("/api/v1/dev/sign-in", h.SignIn)
}

func (h *SignInHandlers) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	if req.Email == "" || req.Password == "" {
		return errx.Validation("email and password are required")
	}
	token, err := h.provider.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(signInResponse{IDToken: token, TokenType: "Bearer"})
}
