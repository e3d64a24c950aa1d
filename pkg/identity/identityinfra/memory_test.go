package identityinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identityinfra"
	"github.com/Abraxas-365/provisioning/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory(t *testing.T) (*identityinfra.MemoryProvider, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := identityinfra.NewMemoryProvider("test-key",
		identityinfra.WithBcryptCost(bcrypt.MinCost),
		identityinfra.WithMinPasswordLength(8),
		identityinfra.WithTokenTTL(time.Minute),
		identityinfra.WithClock(c.now),
	)
	return p, c
}

func TestMemoryProvider_CreateMapsNativeErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemory(t)

	_, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "short"})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, identity.CodeWeakPassword))

	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "WEAK_PASSWORD", e.Details["native_code"])

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough", PhoneNumber: "+51999"})
	require.NoError(t, err)

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "A@X.com ", Password: "long-enough"})
	assert.True(t, errx.IsCode(err, identity.CodeEmailAlreadyExists))

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "b@x.com", Password: "long-enough", PhoneNumber: "+51999"})
	assert.True(t, errx.IsCode(err, identity.CodePhoneNumberExists))

	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "not-an-email", Password: "long-enough"})
	assert.True(t, errx.IsCode(err, identity.CodeInvalidEmail))
}

func TestMemoryProvider_TokenLifecycle(t *testing.T) {
	ctx := context.Background()
	p, c := newMemory(t)

	created, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)
	org := "org-1"
	require.NoError(t, p.SetClaims(ctx, created.ID, identity.Claims{
		Roles:          []string{identity.RoleOperator},
		Permissions:    []string{"profiles:read"},
		OrganizationID: &org,
	}))

	_, err = p.SignIn(ctx, "a@x.com", "wrong-password")
	assert.True(t, errx.IsCode(err, identity.CodeInvalidCredentials))

	token, err := p.SignIn(ctx, "a@x.com", "long-enough")
	require.NoError(t, err)

	principal, err := p.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, principal.IdentityID)
	assert.Equal(t, []string{identity.RoleOperator}, principal.Claims.Roles)
	require.NotNil(t, principal.Claims.OrganizationID)
	assert.Equal(t, "org-1", *principal.Claims.OrganizationID)

	_, err = p.VerifyToken(ctx, token+"x")
	assert.True(t, errx.IsCode(err, identity.CodeInvalidToken))

	c.advance(2 * time.Minute)
	_, err = p.VerifyToken(ctx, token)
	assert.True(t, errx.IsCode(err, identity.CodeTokenExpired))
}

func TestMemoryProvider_RevokeAndDisable(t *testing.T) {
	ctx := context.Background()
	p, c := newMemory(t)

	created, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)
	token, err := p.SignIn(ctx, "a@x.com", "long-enough")
	require.NoError(t, err)

	require.NoError(t, p.RevokeTokens(ctx, created.ID))
	_, err = p.VerifyToken(ctx, token)
	assert.True(t, errx.IsCode(err, identity.CodeInvalidToken))

	c.advance(2 * time.Second)
	token, err = p.SignIn(ctx, "a@x.com", "long-enough")
	require.NoError(t, err)

	require.NoError(t, p.Disable(ctx, created.ID))
	_, err = p.VerifyToken(ctx, token)
	assert.True(t, errx.IsCode(err, identity.CodeUserDisabled))

	_, err = p.SignIn(ctx, "a@x.com", "long-enough")
	assert.True(t, errx.IsCode(err, identity.CodeUserDisabled))
}

func TestMemoryProvider_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemory(t)

	a, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)
	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "b@x.com", Password: "long-enough", PhoneNumber: "+1555"})
	require.NoError(t, err)

	_, err = p.UpdateIdentity(ctx, a.ID, identity.UpdateInput{Email: ptrx.String("b@x.com")})
	assert.True(t, errx.IsCode(err, identity.CodeEmailAlreadyExists))

	_, err = p.UpdateIdentity(ctx, a.ID, identity.UpdateInput{PhoneNumber: ptrx.String("+1555")})
	assert.True(t, errx.IsCode(err, identity.CodePhoneNumberExists))

	updated, err := p.UpdateIdentity(ctx, a.ID, identity.UpdateInput{Email: ptrx.String("new@x.com"), PhoneNumber: ptrx.String("+1777")})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", updated.Email)
	assert.Equal(t, "+1777", updated.PhoneNumber)

	_, err = p.GetByEmail(ctx, "a@x.com")
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))

	require.NoError(t, p.DeleteIdentity(ctx, a.ID))
	_, err = p.GetByEmail(ctx, "new@x.com")
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))
	err = p.DeleteIdentity(ctx, a.ID)
	assert.True(t, errx.IsCode(err, identity.CodeUserNotFound))

	// The freed email can be reused.
	_, err = p.CreateIdentity(ctx, identity.CreateInput{Email: "new@x.com", Password: "long-enough"})
	assert.NoError(t, err)
}

func TestMemoryProvider_SetPassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemory(t)

	a, err := p.CreateIdentity(ctx, identity.CreateInput{Email: "a@x.com", Password: "long-enough"})
	require.NoError(t, err)

	err = p.SetPassword(ctx, a.ID, "tiny")
	assert.True(t, errx.IsCode(err, identity.CodeWeakPassword))

	require.NoError(t, p.SetPassword(ctx, a.ID, "another-password"))
	_, err = p.SignIn(ctx, "a@x.com", "long-enough")
	assert.True(t, errx.IsCode(err, identity.CodeInvalidCredentials))
	_, err = p.SignIn(ctx, "a@x.com", "another-password")
	assert.NoError(t, err)
}
