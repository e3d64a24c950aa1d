package errx

import "net/http"

// Type classifies an error independently of its code. It decides the
// default HTTP status and whether the caller or the system is at fault.
type Type string

const (
	TypeInternal      Type = "INTERNAL"
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	// TypeBusiness is a well-formed request the domain refuses.
	TypeBusiness Type = "BUSINESS"
	// TypeExternal is a failure of a remote dependency, including timeouts.
	TypeExternal Type = "EXTERNAL"
)

var typeStatus = map[Type]int{
	TypeValidation:    http.StatusBadRequest,
	TypeAuthorization: http.StatusUnauthorized,
	TypeNotFound:      http.StatusNotFound,
	TypeConflict:      http.StatusConflict,
	TypeBusiness:      http.StatusUnprocessableEntity,
	TypeExternal:      http.StatusBadGateway,
	TypeInternal:      http.StatusInternalServerError,
}

func (t Type) String() string {
	return string(t)
}

// HTTPStatus is the status used when an error carries no explicit one.
func (t Type) HTTPStatus() int {
	if s, ok := typeStatus[t]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ClientFault reports whether errors of this type are caused by the request
// rather than by this system or a dependency.
func (t Type) ClientFault() bool {
	switch t {
	case TypeValidation, TypeAuthorization, TypeNotFound, TypeConflict, TypeBusiness:
		return true
	}
	return false
}

// TypeForStatus classifies an HTTP status received from a remote service
// or raised by the web framework.
func TypeForStatus(status int) Type {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return TypeAuthorization
	case status == http.StatusNotFound:
		return TypeNotFound
	case status == http.StatusConflict:
		return TypeConflict
	case status == http.StatusUnprocessableEntity:
		return TypeBusiness
	case status >= 400 && status < 500:
		return TypeValidation
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return TypeExternal
	default:
		return TypeInternal
	}
}
