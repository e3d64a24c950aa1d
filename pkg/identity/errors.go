package identity

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("IDENTITY")

var (
	CodeInvalidCredentials  = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid credentials")
	CodeUserNotFound        = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeEmailAlreadyExists  = ErrRegistry.Register("EMAIL_ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Email already exists")
	CodePhoneNumberExists   = ErrRegistry.Register("PHONE_NUMBER_EXISTS", errx.TypeConflict, http.StatusConflict, "Phone number already exists")
	CodeWeakPassword        = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet the policy")
	CodeInvalidEmail        = ErrRegistry.Register("INVALID_EMAIL", errx.TypeValidation, http.StatusBadRequest, "Email address is malformed")
	CodeInvalidToken        = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
	CodeTokenExpired        = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token expired")
	CodeUserDisabled        = ErrRegistry.Register("USER_DISABLED", errx.TypeAuthorization, http.StatusForbidden, "User disabled")
	CodeProviderUnavailable = ErrRegistry.Register("PROVIDER_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway, "Identity provider unavailable")
)

func ErrUserNotFound() *errx.Error        { return ErrRegistry.New(CodeUserNotFound) }
func ErrEmailAlreadyExists() *errx.Error  { return ErrRegistry.New(CodeEmailAlreadyExists) }
func ErrPhoneNumberExists() *errx.Error   { return ErrRegistry.New(CodePhoneNumberExists) }
func ErrWeakPassword() *errx.Error        { return ErrRegistry.New(CodeWeakPassword) }
func ErrInvalidEmail() *errx.Error        { return ErrRegistry.New(CodeInvalidEmail) }
func ErrInvalidToken() *errx.Error        { return ErrRegistry.New(CodeInvalidToken) }
func ErrTokenExpired() *errx.Error        { return ErrRegistry.New(CodeTokenExpired) }
func ErrUserDisabled() *errx.Error        { return ErrRegistry.New(CodeUserDisabled) }
func ErrProviderUnavailable() *errx.Error { return ErrRegistry.New(CodeProviderUnavailable) }

// ExpectedCodes are validation outcomes of normal use; callers log them at
// info level at most.
var ExpectedCodes = []*errx.ErrorCode{
	CodeInvalidCredentials,
	CodeEmailAlreadyExists,
	CodePhoneNumberExists,
	CodeWeakPassword,
	CodeInvalidEmail,
	CodeInvalidToken,
	CodeTokenExpired,
	CodeUserDisabled,
}

// IsExpected reports whether err is one of ExpectedCodes.
func IsExpected(err error) bool {
	for _, code := range ExpectedCodes {
		if errx.IsCode(err, code) {
			return true
		}
	}
	return false
}

// ============================================================================
// Native error mapping
// ============================================================================

// NativeCodeTable maps a provider's own error codes onto the registry.
type NativeCodeTable map[string]*errx.ErrorCode

// Map translates a native error code. Unknown codes become
// PROVIDER_UNAVAILABLE with the native code kept as a detail.
func (t NativeCodeTable) Map(nativeCode, nativeMessage string, cause error) *errx.Error {
	code, ok := t[nativeCode]
	if !ok {
		code = CodeProviderUnavailable
	}
	e := ErrRegistry.NewWithCause(code, cause).WithDetail("native_code", nativeCode)
	if nativeMessage != "" {
		e.WithDetail("native_message", nativeMessage)
	}
	return e
}

// TransportError maps a failed round trip. Timeouts are not distinguished
// from connectivity failures.
func TransportError(err error) *errx.Error {
	var existing *errx.Error
	if errors.As(err, &existing) && existing.Code != "" {
		if _, ok := ErrRegistry.Lookup(existing.Code); ok {
			return existing
		}
	}
	e := ErrRegistry.NewWithCause(CodeProviderUnavailable, err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e.WithDetail("reason", "timeout")
	}
	return e
}
