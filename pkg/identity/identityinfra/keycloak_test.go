package identityinfra_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identityinfra"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeycloak serves just enough of the realm discovery, token and admin
// endpoints for the adapter.
type fakeKeycloak struct {
	mu     sync.Mutex
	srv    *httptest.Server
	users  map[string]map[string]interface{}
	nextID int
	fail   int
	// readsDown fails single-user reads while writes keep working.
	readsDown bool
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	t.Helper()
	fk := &fakeKeycloak{users: make(map[string]map[string]interface{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/test/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		issuer := fk.srv.URL + "/realms/test"
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + "/protocol/openid-connect/auth",
			"token_endpoint":                        issuer + "/protocol/openid-connect/token",
			"jwks_uri":                              issuer + "/protocol/openid-connect/certs",
			"userinfo_endpoint":                     issuer + "/protocol/openid-connect/userinfo",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/realms/test/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "admin-token",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	})
	mux.HandleFunc("/realms/test/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"keys": []interface{}{}})
	})
	mux.HandleFunc("/admin/realms/test/users", fk.handleUsers)
	mux.HandleFunc("/admin/realms/test/users/", fk.handleUser)
	fk.srv = httptest.NewServer(mux)
	t.Cleanup(fk.srv.Close)
	return fk
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fk *fakeKeycloak) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer admin-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	if fk.fail > 0 {
		fk.fail--
		w.WriteHeader(http.StatusInternalServerError)
		return false
	}
	return true
}

func (fk *fakeKeycloak) handleUsers(w http.ResponseWriter, r *http.Request) {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	if !fk.authorized(w, r) {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var rep map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&rep)
		for _, u := range fk.users {
			if u["email"] == rep["email"] {
				writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "User exists with same email"})
				return
			}
		}
		if email, _ := rep["email"].(string); !strings.Contains(email, "@") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": "invalidEmailMessage"})
			return
		}
		creds, _ := rep["credentials"].([]interface{})
		if len(creds) > 0 {
			value, _ := creds[0].(map[string]interface{})["value"].(string)
			if len(value) < 8 {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalidPasswordMinLengthMessage",
					"error_description": "Invalid password: minimum length 8.",
				})
				return
			}
		}
		fk.nextID++
		id := fmt.Sprintf("kc-%d", fk.nextID)
		delete(rep, "credentials")
		rep["id"] = id
		rep["createdTimestamp"] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
		fk.users[id] = rep
		w.Header().Set("Location", fk.srv.URL+"/admin/realms/test/users/"+id)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		out := []map[string]interface{}{}
		email := r.URL.Query().Get("email")
		q := r.URL.Query().Get("q")
		for _, u := range fk.users {
			if email != "" && u["email"] == email {
				out = append(out, u)
			}
			if strings.HasPrefix(q, "phone_number:") {
				attrs, _ := u["attributes"].(map[string]interface{})
				phones, _ := attrs["phone_number"].([]interface{})
				if len(phones) > 0 && phones[0] == strings.TrimPrefix(q, "phone_number:") {
					out = append(out, u)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fk *fakeKeycloak) handleUser(w http.ResponseWriter, r *http.Request) {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	if !fk.authorized(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/admin/realms/test/users/")
	parts := strings.Split(rest, "/")
	u, ok := fk.users[parts[0]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "reset-password", "logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		if fk.readsDown {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		var rep map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&rep)
		for id, other := range fk.users {
			if id != parts[0] && other["email"] == rep["email"] {
				writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "User exists with same email"})
				return
			}
		}
		rep["id"] = parts[0]
		fk.users[parts[0]] = rep
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		delete(fk.users, parts[0])
		w.WriteHeader(http.StatusNoContent)
	}
}

func newKeycloak(t *testing.T, fk *fakeKeycloak) *identityinfra.KeycloakProvider {
	t.Helper()
	p, err := identityinfra.NewKeycloakProvider(context.Background(), identityinfra.KeycloakConfig{
		BaseURL:      fk.srv.URL,
		Realm:        "test",
		ClientID:     "provisioner",
		ClientSecret: "secret",
		Timeout:      time.Second,
		RetryMax:     0,
	})
	require.NoError(t, err)
	return p
}

func TestKeycloakProvider_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	fk := newFakeKeycloak(t)
	p := newKeycloak(t, fk)

	created, err := p.CreateIdentity(ctx, identity.CreateInput{
		Email:       "A@x.com",
		Password:    "long-enough",
		DisplayName: "Ann",
		PhoneNumber: "+51987",
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.IdentityID("kc-1"), created.ID)
	assert.Equal(t, "a@x.com", created.Email)
	assert.Equal(t, "Ann", created.DisplayName)
	assert.Equal(t, "+51987", created.PhoneNumber)
	assert.False(t, created.Disabled)

	byEmail, err := p.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = p.GetByEmail(ctx, "nobody@x.com")
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))
}

func TestKeycloakProvider_CreateReturnsIdentityWhenReadsFail(t *testing.T) {
	fk := newFakeKeycloak(t)
	p := newKeycloak(t, fk)
	fk.readsDown = true

	created, err := p.CreateIdentity(context.Background(), identity.CreateInput{
		Email:       "a@x.com",
		Password:    "long-enough",
		DisplayName: "Ann",
	})

	require.NoError(t, err)
	assert.Equal(t, kernel.IdentityID("kc-1"), created.ID)
	assert.Equal(t, "a@x.com", created.Email)
	assert.Equal(t, "Ann", created.DisplayName)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Contains(t, fk.users, "kc-1")
}

func TestKeycloakProvider_MapsNativeErrors(t *testing.T) {
	ctx := context.Background()
	fk := newFakeKeycloak(t)
	p := newKeycloak(t, fk)

	_, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "short"})
	assert.True(t, errx.IsCode(err, identity.CodeWeakPassword))

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "not-an-email", Password: "long-enough"})
	assert.True(t, errx.IsCode(err, identity.CodeInvalidEmail))

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough", PhoneNumber: "+51987"})
	require.NoError(t, err)

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	assert.True(t, errx.IsCode(err, identity.CodeEmailAlreadyExists))

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "b@x.com", Password: "long-enough", PhoneNumber: "+51987"})
	assert.True(t, errx.IsCode(err, identity.CodePhoneNumberExists))

	_, err = p.GetByID(ctx, "missing")
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))

	fk.fail = 1
	_, err = p.GetByID(ctx, "kc-1")
	assert.True(t, errx.IsCode(err, identity.CodeProviderUnavailable))
}

func TestKeycloakProvider_UpdateClaimsAndDelete(t *testing.T) {
	ctx := context.Background()
	fk := newFakeKeycloak(t)
	p := newKeycloak(t, fk)

	a, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)
	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "b@x.com", Password: "long-enough"})
	require.NoError(t, err)

	_, err = p.UpdateIdentity(ctx, a.ID, identity.UpdateInput{Email: ptrx.String("b@x.com")})
	assert.True(t, errx.IsCode(err, identity.CodeEmailAlreadyExists))

	updated, err := p.UpdateIdentity(ctx, a.ID, identity.UpdateInput{Email: ptrx.String("c@x.com"), PhoneNumber: ptrx.String("+1222")})
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", updated.Email)
	assert.Equal(t, "+1222", updated.PhoneNumber)
	assert.Equal(t, "c@x.com", fk.users[a.ID.String()]["username"])

	org := "org-9"
	require.NoError(t, p.SetClaims(ctx, a.ID, identity.Claims{
		Roles:          []string{identity.RoleAdmin},
		Permissions:    []string{"*"},
		OrganizationID: &org,
	}))
	got, err := p.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.RoleAdmin}, got.Claims.Roles)
	require.NotNil(t, got.Claims.OrganizationID)
	assert.Equal(t, "org-9", *got.Claims.OrganizationID)
	assert.Equal(t, "+1222", got.PhoneNumber)

	require.NoError(t, p.SetPassword(ctx, a.ID, "brand-new-password"))
	require.NoError(t, p.RevokeTokens(ctx, a.ID))

	require.NoError(t, p.Disable(ctx, a.ID))
	got, err = p.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	require.NoError(t, p.DeleteIdentity(ctx, a.ID))
	err = p.DeleteIdentity(ctx, a.ID)
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))
}

func TestKeycloakProvider_VerifyTokenRejectsGarbage(t *testing.T) {
	fk := newFakeKeycloak(t)
	p := newKeycloak(t, fk)

	_, err := p.VerifyToken(context.Background(), "not.a.jwt")
	assert.True(t, errx.IsCode(err, identity.CodeInvalidToken))
}
