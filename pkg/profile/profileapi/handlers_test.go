package profileapi_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/identity/identitysrv"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileapi"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileinfra"
	"github.com/Abraxas-365/provisioning/pkg/profile/profilesrv"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(false)})
	profileapi.NewHandlers(profilesrv.NewService(profileinfra.NewMemoryRepository())).
		RegisterRoutes(app, profileapi.ServiceAuth("svc"))
	return app
}

func send(t *testing.T, app *fiber.App, method, path, token, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp.StatusCode, raw
}

func codeOf(t *testing.T, raw []byte) string {
	t.Helper()
	var e errx.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	return e.Code
}

func TestServiceAuth(t *testing.T) {
	app := newApp()

	status, raw := send(t, app, "GET", "/api/v1/profiles/a", "", "")
	assert.Equal(t, 401, status)
	assert.Equal(t, identitysrv.CodeMissingAuthHeader.Code, codeOf(t, raw))

	status, raw = send(t, app, "GET", "/api/v1/profiles/a", "nope", "")
	assert.Equal(t, 401, status)
	assert.Equal(t, profileapi.CodeServiceTokenRejected.Code, codeOf(t, raw))
}

func TestProfileRoutes(t *testing.T) {
	app := newApp()

	status, raw := send(t, app, "POST", "/api/v1/profiles", "svc",
		`{"identity_ref":"idp-1","type":"user","username":"ann","email":"ann@x.com"}`)
	require.Equal(t, 201, status)
	var rec profile.ProfileRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "ann", rec.Username)

	status, raw = send(t, app, "PATCH", "/api/v1/profiles/idp-1", "svc", `{"last_name":"Lee","phone_number":null}`)
	require.Equal(t, 200, status)
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "Lee", rec.LastName)

	status, raw = send(t, app, "PATCH", "/api/v1/profiles/idp-1", "svc", `{}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, profile.CodeInvalidRequest.Code, codeOf(t, raw))

	status, raw = send(t, app, "GET", "/api/v1/profiles/lookup?username=ann&type=user", "svc", "")
	require.Equal(t, 200, status)
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "idp-1", rec.IdentityRef.String())

	status, raw = send(t, app, "GET", "/api/v1/profiles/lookup?type=user", "svc", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, profile.CodeInvalidRequest.Code, codeOf(t, raw))

	status, _ = send(t, app, "GET", "/api/v1/profiles?type=user&active=true&page_size=5", "svc", "")
	assert.Equal(t, 200, status)

	status, _ = send(t, app, "DELETE", "/api/v1/profiles/idp-1", "svc", "")
	assert.Equal(t, 204, status)

	status, raw = send(t, app, "GET", "/api/v1/profiles/idp-1", "svc", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, profile.CodeNotFound.Code, codeOf(t, raw))
}
