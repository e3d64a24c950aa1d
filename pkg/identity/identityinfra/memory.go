package identityinfra

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Native codes emitted by the in-memory provider. They follow the vocabulary
// of hosted identity platforms so the mapping table is exercised the same way
// a real adapter's is.
const (
	nativeEmailExists      = "EMAIL_EXISTS"
	nativePhoneExists      = "PHONE_NUMBER_EXISTS"
	nativeWeakPassword     = "WEAK_PASSWORD"
	nativeInvalidEmail     = "INVALID_EMAIL"
	nativeUserNotFound     = "USER_NOT_FOUND"
	nativeEmailNotFound    = "EMAIL_NOT_FOUND"
	nativeInvalidPassword  = "INVALID_PASSWORD"
	nativeTokenExpired     = "TOKEN_EXPIRED"
	nativeInvalidIDToken   = "INVALID_ID_TOKEN"
	nativeTokenRevoked     = "TOKEN_REVOKED"
	nativeUserDisabled     = "USER_DISABLED"
	nativeInternalFailure  = "INTERNAL_ERROR"
	defaultMinPasswordSize = 6
)

var memoryNativeCodes = identity.NativeCodeTable{
	nativeEmailExists:     identity.CodeEmailAlreadyExists,
	nativePhoneExists:     identity.CodePhoneNumberExists,
	nativeWeakPassword:    identity.CodeWeakPassword,
	nativeInvalidEmail:    identity.CodeInvalidEmail,
	nativeUserNotFound:    identity.CodeUserNotFound,
	nativeEmailNotFound:   identity.CodeUserNotFound,
	nativeInvalidPassword: identity.CodeInvalidCredentials,
	nativeTokenExpired:    identity.CodeTokenExpired,
	nativeInvalidIDToken:  identity.CodeInvalidToken,
	nativeTokenRevoked:    identity.CodeInvalidToken,
	nativeUserDisabled:    identity.CodeUserDisabled,
}

type nativeError struct {
	code    string
	message string
	cause   error
}

func (e *nativeError) Error() string {
	if e.message == "" {
		return e.code
	}
	return e.code + ": " + e.message
}

func (e *nativeError) Unwrap() error { return e.cause }

func native(code, message string) *nativeError {
	return &nativeError{code: code, message: message}
}

type memoryUser struct {
	identity     identity.Identity
	passwordHash []byte
	validSince   time.Time
}

// MemoryProvider is an in-process identity provider for local development
// and tests.
type MemoryProvider struct {
	mu      sync.RWMutex
	users   map[kernel.IdentityID]*memoryUser
	byEmail map[string]kernel.IdentityID
	byPhone map[string]kernel.IdentityID

	signingKey     []byte
	tokenTTL       time.Duration
	bcryptCost     int
	minPasswordLen int
	issuer         string
	now            func() time.Time
}

type MemoryOption func(*MemoryProvider)

func WithTokenTTL(ttl time.Duration) MemoryOption {
	return func(p *MemoryProvider) { p.tokenTTL = ttl }
}

func WithBcryptCost(cost int) MemoryOption {
	return func(p *MemoryProvider) { p.bcryptCost = cost }
}

func WithMinPasswordLength(n int) MemoryOption {
	return func(p *MemoryProvider) { p.minPasswordLen = n }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) { p.now = now }
}

func NewMemoryProvider(signingKey string, opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		users:          make(map[kernel.IdentityID]*memoryUser),
		byEmail:        make(map[string]kernel.IdentityID),
		byPhone:        make(map[string]kernel.IdentityID),
		signingKey:     []byte(signingKey),
		tokenTTL:       time.Hour,
		bcryptCost:     bcrypt.DefaultCost,
		minPasswordLen: defaultMinPasswordSize,
		issuer:         "memory-idp",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ identity.Provider = (*MemoryProvider)(nil)

// fail translates a native error into the identity taxonomy.
func fail(err error) error {
	if err == nil {
		return nil
	}
	var ne *nativeError
	if errors.As(err, &ne) {
		return memoryNativeCodes.Map(ne.code, ne.message, ne)
	}
	return memoryNativeCodes.Map(nativeInternalFailure, err.Error(), err)
}

func (p *MemoryProvider) CreateIdentity(ctx context.Context, in identity.CreateInput) (*identity.Identity, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fail(native(nativeInvalidEmail, "invalid email address"))
	}
	if len(in.Password) < p.minPasswordLen {
		return nil, fail(native(nativeWeakPassword, fmt.Sprintf("password should be at least %d characters", p.minPasswordLen)))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.bcryptCost)
	if err != nil {
		return nil, fail(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.byEmail[email]; taken {
		return nil, fail(native(nativeEmailExists, "the email address is already in use"))
	}
	if in.PhoneNumber != "" {
		if _, taken := p.byPhone[in.PhoneNumber]; taken {
			return nil, fail(native(nativePhoneExists, "the phone number is already in use"))
		}
	}

	now := p.now().UTC()
	u := &memoryUser{
		identity: identity.Identity{
			ID:          kernel.NewIdentityID(strings.ReplaceAll(uuid.NewString(), "-", "")),
			Email:       email,
			DisplayName: in.DisplayName,
			PhoneNumber: in.PhoneNumber,
			Claims:      identity.Claims{Roles: []string{}, Permissions: []string{}},
			CreatedAt:   now,
		},
		passwordHash: hash,
		validSince:   now.Add(-time.Second),
	}
	p.users[u.identity.ID] = u
	p.byEmail[email] = u.identity.ID
	if in.PhoneNumber != "" {
		p.byPhone[in.PhoneNumber] = u.identity.ID
	}

	out := u.identity
	return &out, nil
}

// SignIn checks the password and issues an ID token carrying the current
// custom claims. It backs the development sign-in route.
func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return "", fail(native(nativeEmailNotFound, "no user record for this email"))
	}
	u := p.users[id]
	if u.identity.Disabled {
		return "", fail(native(nativeUserDisabled, "the user account has been disabled"))
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return "", fail(native(nativeInvalidPassword, "the password is invalid"))
	}

	now := p.now().UTC()
	u.identity.LastSignIn = &now
	return p.issue(u, now)
}

type memoryTokenClaims struct {
	Email         string                 `json:"email"`
	EmailVerified bool                   `json:"email_verified"`
	Custom        map[string]interface{} `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

func (p *MemoryProvider) issue(u *memoryUser, now time.Time) (string, error) {
	claims := memoryTokenClaims{
		Email:         u.identity.Email,
		EmailVerified: u.identity.EmailVerified,
		Custom:        u.identity.Claims.ToMap(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   u.identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", fail(err)
	}
	return signed, nil
}

func (p *MemoryProvider) VerifyToken(ctx context.Context, token string) (*identity.AuthenticatedPrincipal, error) {
	var claims memoryTokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.signingKey, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fail(&nativeError{code: nativeTokenExpired, message: "token has expired", cause: err})
		}
		return nil, fail(&nativeError{code: nativeInvalidIDToken, message: "token could not be verified", cause: err})
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[kernel.NewIdentityID(claims.Subject)]
	if !ok {
		return nil, fail(native(nativeUserNotFound, "token subject no longer exists"))
	}
	if u.identity.Disabled {
		return nil, fail(native(nativeUserDisabled, "the user account has been disabled"))
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Before(u.validSince) {
		return nil, fail(native(nativeTokenRevoked, "token issued before the last revocation"))
	}

	return &identity.AuthenticatedPrincipal{
		IdentityID:    u.identity.ID,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Claims:        identity.ClaimsFromMap(claims.Custom),
	}, nil
}

func (p *MemoryProvider) UpdateIdentity(ctx context.Context, id kernel.IdentityID, in identity.UpdateInput) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return nil, fail(native(nativeUserNotFound, "no user record for this identifier"))
	}

	var email string
	if in.Email != nil {
		email = normalizeEmail(*in.Email)
		if _, err := mail.ParseAddress(email); err != nil || email == "" {
			return nil, fail(native(nativeInvalidEmail, "invalid email address"))
		}
		if owner, taken := p.byEmail[email]; taken && owner != id {
			return nil, fail(native(nativeEmailExists, "the email address is already in use"))
		}
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != "" {
		if owner, taken := p.byPhone[*in.PhoneNumber]; taken && owner != id {
			return nil, fail(native(nativePhoneExists, "the phone number is already in use"))
		}
	}

	if in.Email != nil && email != u.identity.Email {
		delete(p.byEmail, u.identity.Email)
		p.byEmail[email] = id
		u.identity.Email = email
		u.identity.EmailVerified = false
	}
	if in.PhoneNumber != nil {
		if u.identity.PhoneNumber != "" {
			delete(p.byPhone, u.identity.PhoneNumber)
		}
		u.identity.PhoneNumber = *in.PhoneNumber
		if *in.PhoneNumber != "" {
			p.byPhone[*in.PhoneNumber] = id
		}
	}

	out := u.identity
	return &out, nil
}

func (p *MemoryProvider) SetPassword(ctx context.Context, id kernel.IdentityID, password string) error {
	if len(password) < p.minPasswordLen {
		return fail(native(nativeWeakPassword, fmt.Sprintf("password should be at least %d characters", p.minPasswordLen)))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return fail(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	u.passwordHash = hash
	return nil
}

func (p *MemoryProvider) SetClaims(ctx context.Context, id kernel.IdentityID, claims identity.Claims) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	// Round-trip through the stored map shape so callers cannot alias slices.
	u.identity.Claims = identity.ClaimsFromMap(claims.ToMap())
	return nil
}

func (p *MemoryProvider) GetByID(ctx context.Context, id kernel.IdentityID) (*identity.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[id]
	if !ok {
		return nil, fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	out := u.identity
	return &out, nil
}

func (p *MemoryProvider) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, fail(native(nativeUserNotFound, "no user record for this email"))
	}
	out := p.users[id].identity
	return &out, nil
}

func (p *MemoryProvider) Disable(ctx context.Context, id kernel.IdentityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	u.identity.Disabled = true
	return nil
}

func (p *MemoryProvider) RevokeTokens(ctx context.Context, id kernel.IdentityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	// Token iat has second precision.
	u.validSince = p.now().UTC().Truncate(time.Second).Add(time.Second)
	return nil
}

func (p *MemoryProvider) DeleteIdentity(ctx context.Context, id kernel.IdentityID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return fail(native(nativeUserNotFound, "no user record for this identifier"))
	}
	delete(p.byEmail, u.identity.Email)
	if u.identity.PhoneNumber != "" {
		delete(p.byPhone, u.identity.PhoneNumber)
	}
	delete(p.users, id)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
