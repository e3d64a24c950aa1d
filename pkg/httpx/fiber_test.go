package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRegistry = errx.NewRegistry("TEST")
var codeBroken = testRegistry.Register("BROKEN", errx.TypeConflict, 409, "Broken")

func newApp(debug bool) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(debug)})
	app.Use(requestid.New())
	app.Use(httpx.RequestContext())
	return app
}

func decode(t *testing.T, body io.Reader) errx.HTTPErrorResponse {
	t.Helper()
	var out errx.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestErrorHandler_RendersWrappedErrx(t *testing.T) {
	app := newApp(false)
	app.Get("/", func(c *fiber.Ctx) error {
		e := testRegistry.NewWithCause(codeBroken, errors.New("secret cause")).WithDetail("k", "v")
		return fmt.Errorf("handler: %w", e)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "TEST_BROKEN", body.Code)
	assert.Equal(t, "v", body.Details["k"])
	assert.NotContains(t, body.Details, "underlying_error")
	assert.NotEmpty(t, body.RequestID)
}

func TestErrorHandler_UnknownErrorsAreOpaque(t *testing.T) {
	app := newApp(true)
	app.Get("/", func(c *fiber.Ctx) error { return errors.New("db password is hunter2") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "hunter2")
}

func TestRequestContext_PropagatesRequestID(t *testing.T) {
	app := newApp(false)
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.UserContext().Value(kernel.RequestIDKey).(string)
		return c.SendString(id)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(httpx.RequestIDHeader, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "req-123", string(got))
}

func TestNotFoundHandler(t *testing.T) {
	app := newApp(false)
	app.Use(httpx.NotFoundHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "ROUTE_NOT_FOUND", decode(t, resp.Body).Code)
}
