package profile

import (
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("PROFILE")

var (
	CodeNotFound             = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Profile not found")
	CodeDuplicate            = ErrRegistry.Register("DUPLICATE", errx.TypeConflict, http.StatusConflict, "Profile already exists")
	CodeInvalidRequest       = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid profile request")
	CodeIdentityRefMismatch  = ErrRegistry.Register("IDENTITY_REF_MISMATCH", errx.TypeInternal, http.StatusInternalServerError, "Profile store returned a record for a different identity")
	CodeStoreUnavailable     = ErrRegistry.Register("STORE_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway, "Profile store unavailable")
	CodeUnexpectedStoreReply = ErrRegistry.Register("UNEXPECTED_REPLY", errx.TypeExternal, http.StatusBadGateway, "Profile store returned an unexpected reply")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

func ErrDuplicate(reason string) *errx.Error {
	return ErrRegistry.New(CodeDuplicate).WithDetail("reason", reason)
}

func ErrInvalidRequest(msg string) *errx.Error {
	return ErrRegistry.NewWithMessage(CodeInvalidRequest, msg)
}

func ErrStoreUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStoreUnavailable, cause)
}
