package profileinfra_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileapi"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileinfra"
	"github.com/Abraxas-365/provisioning/pkg/profile/profilesrv"
	"github.com/Abraxas-365/provisioning/pkg/ptrx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRemote serves the real profile API over an in-memory repository.
func newRemote(t *testing.T, token string) *httptest.Server {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(false)})
	profileapi.NewHandlers(profilesrv.NewService(profileinfra.NewMemoryRepository())).
		RegisterRoutes(app, profileapi.ServiceAuth(token))
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return srv
}

func newStore(url, token string) *profileinfra.HTTPStore {
	client := httpx.NewClient(httpx.Options{
		Name:         "profile-store",
		BaseURL:      url,
		Timeout:      time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	return profileinfra.NewHTTPStore(client, token)
}

func TestHTTPStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(newRemote(t, "svc").URL, "svc")

	created, err := store.Create(ctx, profile.CreateRequest{
		IdentityRef: "idp-1",
		Type:        profile.PrincipalTypeCustomer,
		Username:    "ann",
		Email:       "ann@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.IdentityID("idp-1"), created.IdentityRef)

	got, err := store.Get(ctx, "idp-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	updated, err := store.Update(ctx, "idp-1", profile.Patch{
		FirstName: ptrx.Some("Ann"),
		RoleIDs:   ptrx.Some([]string{"r2"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.FirstName)
	assert.Equal(t, []string{"r2"}, updated.RoleIDs)
	assert.Equal(t, "ann@x.com", updated.Email)

	found, err := store.FindByUsername(ctx, "ann", profile.PrincipalTypeCustomer)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	page, err := store.List(ctx, profile.Filter{Type: profile.PrincipalTypeCustomer}, kernel.PaginationOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page.Total)

	require.NoError(t, store.Delete(ctx, "idp-1"))
	_, err = store.Get(ctx, "idp-1")
	assert.True(t, errx.IsCode(err, profile.CodeNotFound))
}

func TestHTTPStore_RehydratesRemoteErrors(t *testing.T) {
	ctx := context.Background()
	store := newStore(newRemote(t, "").URL, "")

	_, err := store.Create(ctx, profile.CreateRequest{IdentityRef: "a", Type: profile.PrincipalTypeUser, Username: "dup"})
	require.NoError(t, err)
	_, err = store.Create(ctx, profile.CreateRequest{IdentityRef: "b", Type: profile.PrincipalTypeUser, Username: "dup"})
	assert.True(t, errx.IsCode(err, profile.CodeDuplicate))

	_, err = store.FindByUsername(ctx, "nobody", profile.PrincipalTypeUser)
	assert.True(t, errx.IsCode(err, profile.CodeNotFound))

	_, err = store.Update(ctx, "a", profile.Patch{})
	assert.True(t, errx.IsCode(err, profile.CodeInvalidRequest))

	_, err = store.Create(ctx, profile.CreateRequest{Type: profile.PrincipalTypeUser, Username: "x"})
	assert.True(t, errx.IsCode(err, profile.CodeInvalidRequest))
}

func TestHTTPStore_RejectsWrongServiceToken(t *testing.T) {
	store := newStore(newRemote(t, "right").URL, "wrong")

	_, err := store.Get(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, profileapi.CodeServiceTokenRejected.Code, errx.CodeOf(err))
}

func TestHTTPStore_ForwardsCallerToken(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identity_ref":"a","type":"user","username":"u"}`))
	}))
	defer srv.Close()

	ctx := kernel.WithBearerToken(context.Background(), "caller-token")
	_, err := newStore(srv.URL, "").Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Bearer caller-token", auth.Load())
}

func TestHTTPStore_DetectsIdentityRefMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identity_ref":"someone-else","type":"user","username":"u"}`))
	}))
	defer srv.Close()

	_, err := newStore(srv.URL, "").Update(context.Background(), "a", profile.Patch{FirstName: ptrx.Some("x")})
	assert.True(t, errx.IsCode(err, profile.CodeIdentityRefMismatch))
}

func TestHTTPStore_UnavailableRemote(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newStore(srv.URL, "").Get(context.Background(), "a")
	assert.True(t, errx.IsCode(err, profile.CodeStoreUnavailable))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	srv.Close()
	_, err = newStore(srv.URL, "").Get(context.Background(), "a")
	assert.True(t, errx.IsCode(err, profile.CodeStoreUnavailable))
}
