package identitysrv

import (
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
)

var TokenRegistry = errx.NewRegistry("TOKEN")

var (
	CodeMissingAuthHeader = TokenRegistry.Register("MISSING_AUTH_HEADER", errx.TypeAuthorization, http.StatusUnauthorized, "Authorization header is required")
	CodeMalformedBearer   = TokenRegistry.Register("MALFORMED_BEARER", errx.TypeAuthorization, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
)

var ClaimsRegistry = errx.NewRegistry("CLAIMS")

var (
	CodeUnknownRole = ClaimsRegistry.Register("UNKNOWN_ROLE", errx.TypeValidation, http.StatusBadRequest, "Unknown role")
)

func ErrMissingAuthHeader() *errx.Error { return TokenRegistry.New(CodeMissingAuthHeader) }
func ErrMalformedBearer() *errx.Error   { return TokenRegistry.New(CodeMalformedBearer) }
func ErrUnknownRole(role string) *errx.Error {
	return ClaimsRegistry.New(CodeUnknownRole).WithDetail("role", role)
}
