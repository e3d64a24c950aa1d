package errx_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRegistry = errx.NewRegistry("TEST")
	codeThing    = testRegistry.Register("THING_MISSING", errx.TypeNotFound, http.StatusNotFound, "Thing missing")
	codeOther    = testRegistry.Register("OTHER", errx.TypeConflict, http.StatusConflict, "Other")
)

func TestRegistry_RegisterPrefixesCode(t *testing.T) {
	assert.Equal(t, "TEST_THING_MISSING", codeThing.Code)

	got, ok := testRegistry.Get("THING_MISSING")
	require.True(t, ok)
	assert.Same(t, codeThing, got)

	got, ok = testRegistry.Lookup("TEST_OTHER")
	require.True(t, ok)
	assert.Same(t, codeOther, got)

	_, ok = testRegistry.Lookup("NOPE_OTHER")
	assert.False(t, ok)
}

func TestIsCode_FollowsWrapping(t *testing.T) {
	base := testRegistry.New(codeThing).WithDetail("id", "42")
	wrapped := fmt.Errorf("loading: %w", base)

	assert.True(t, errx.IsCode(wrapped, codeThing))
	assert.False(t, errx.IsCode(wrapped, codeOther))
	assert.True(t, errors.Is(wrapped, testRegistry.New(codeThing)))
}

func TestHasCode_FindsInnerCause(t *testing.T) {
	inner := testRegistry.New(codeThing)
	outer := testRegistry.NewWithCause(codeOther, inner)

	assert.True(t, errx.IsCode(outer, codeOther))
	assert.False(t, errx.IsCode(outer, codeThing))
	assert.True(t, errx.HasCode(outer, codeThing))
}

func TestWrap_PreservesRegisteredCode(t *testing.T) {
	base := testRegistry.New(codeThing)
	wrapped := errx.Wrap(base, "lookup failed", errx.TypeInternal)

	assert.Equal(t, codeThing.Code, wrapped.Code)
	assert.Equal(t, http.StatusNotFound, wrapped.HTTPStatus)
	assert.Nil(t, errx.Wrap(nil, "nothing", errx.TypeInternal))
}

func TestFromHTTPResponse_RehydratesRegisteredCodes(t *testing.T) {
	original := testRegistry.New(codeOther).WithDetail("field", "username")
	resp := original.ToHTTPResponse()

	rebuilt := errx.FromHTTPResponse(resp, testRegistry)
	assert.True(t, errx.IsCode(rebuilt, codeOther))
	assert.Equal(t, "username", rebuilt.Details["field"])

	unknown := errx.FromHTTPResponse(errx.HTTPErrorResponse{Code: "ELSEWHERE_BOOM", Message: "boom"}, testRegistry)
	assert.Equal(t, "ELSEWHERE_BOOM", unknown.Code)
	assert.Equal(t, errx.TypeExternal, unknown.Type)
	assert.Equal(t, http.StatusBadGateway, unknown.HTTPStatus)
}

func TestRegister_DefaultsStatusFromType(t *testing.T) {
	r := errx.NewRegistry("DEFAULTS")
	code := r.Register("REFUSED", errx.TypeBusiness, 0, "Refused")

	assert.Equal(t, http.StatusUnprocessableEntity, code.HTTPStatus)
	assert.Panics(t, func() { r.Register("REFUSED", errx.TypeBusiness, 0, "again") })
}

func TestType_Classification(t *testing.T) {
	assert.True(t, errx.TypeConflict.ClientFault())
	assert.True(t, errx.TypeBusiness.ClientFault())
	assert.False(t, errx.TypeExternal.ClientFault())
	assert.False(t, errx.TypeInternal.ClientFault())

	assert.Equal(t, http.StatusBadGateway, errx.TypeExternal.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, errx.Type("UNKNOWN").HTTPStatus())

	assert.Equal(t, errx.TypeAuthorization, errx.TypeForStatus(http.StatusForbidden))
	assert.Equal(t, errx.TypeValidation, errx.TypeForStatus(http.StatusTooManyRequests))
	assert.Equal(t, errx.TypeExternal, errx.TypeForStatus(http.StatusGatewayTimeout))
	assert.Equal(t, errx.TypeInternal, errx.TypeForStatus(http.StatusInternalServerError))
}

func TestFromHTTPResponse_InfersTypeFromStatus(t *testing.T) {
	e := errx.FromHTTPResponse(errx.HTTPErrorResponse{Code: "ELSEWHERE_GONE", Message: "gone", StatusCode: http.StatusNotFound})

	assert.Equal(t, errx.TypeNotFound, e.Type)
	assert.Equal(t, http.StatusNotFound, e.HTTPStatus)
}
