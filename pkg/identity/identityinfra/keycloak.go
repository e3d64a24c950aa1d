package identityinfra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	kcUserExistsEmail     = "user_exists_email"
	kcUserExistsUsername  = "user_exists_username"
	kcUserExistsPhone     = "user_exists_phone"
	kcInvalidPassword     = "invalid_password_policy"
	kcInvalidEmail        = "invalid_email"
	kcInvalidGrant        = "invalid_grant"
	kcUserNotFound        = "user_not_found"
	kcUserDisabled        = "user_disabled"
	kcTokenExpired        = "token_expired"
	kcInvalidToken        = "invalid_token"
	kcUnauthorizedClient  = "unauthorized_client"
	kcUnexpectedResponse  = "unexpected_response"
	attrPhoneNumber       = "phone_number"
	attrDisplayName       = "display_name"
	attrRoles             = "roles"
	attrPermissions       = "permissions"
	attrOrganizationID    = "organization_id"
	keycloakLocationUsers = "/users/"
)

var keycloakNativeCodes = identity.NativeCodeTable{
	kcUserExistsEmail:    identity.CodeEmailAlreadyExists,
	kcUserExistsUsername: identity.CodeEmailAlreadyExists,
	kcUserExistsPhone:    identity.CodePhoneNumberExists,
	kcInvalidPassword:    identity.CodeWeakPassword,
	kcInvalidEmail:       identity.CodeInvalidEmail,
	kcInvalidGrant:       identity.CodeInvalidCredentials,
	kcUserNotFound:       identity.CodeUserNotFound,
	kcUserDisabled:       identity.CodeUserDisabled,
	kcTokenExpired:       identity.CodeTokenExpired,
	kcInvalidToken:       identity.CodeInvalidToken,
}

// KeycloakConfig locates the realm and the confidential client used for
// admin API calls. The client needs the realm-management manage-users role.
type KeycloakConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	// Audience checked on verified tokens; empty skips the check.
	Audience string

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *logx.Logger
}

// KeycloakProvider implements identity.Provider on the Keycloak admin REST
// API, verifying bearer tokens against the realm's OIDC keys.
type KeycloakProvider struct {
	admin    *httpx.Client
	verifier *oidc.IDTokenVerifier
}

var _ identity.Provider = (*KeycloakProvider)(nil)

// NewKeycloakProvider runs OIDC discovery against the realm issuer. ctx is
// kept for key set refreshes and admin token fetches, so it must outlive the
// provider; cancellation is stripped.
func NewKeycloakProvider(ctx context.Context, cfg KeycloakConfig) (*KeycloakProvider, error) {
	if cfg.BaseURL == "" || cfg.Realm == "" || cfg.ClientID == "" {
		return nil, errx.New("keycloak config missing required fields", errx.TypeValidation)
	}
	ctx = context.WithoutCancel(ctx)
	base := strings.TrimRight(cfg.BaseURL, "/")
	issuer := base + "/realms/" + url.PathEscape(cfg.Realm)

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errx.Wrap(err, "failed to init keycloak oidc provider", errx.TypeExternal).
			WithDetail("issuer", issuer)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID:          cfg.Audience,
		SkipClientIDCheck: cfg.Audience == "",
	})

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     oidcProvider.Endpoint().TokenURL,
	}

	admin := httpx.NewClient(httpx.Options{
		Name:         "keycloak",
		BaseURL:      base + "/admin/realms/" + url.PathEscape(cfg.Realm),
		Timeout:      cfg.Timeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		HTTPClient:   cc.Client(ctx),
		Logger:       cfg.Logger,
	})

	return &KeycloakProvider{admin: admin, verifier: verifier}, nil
}

// ============================================================================
// Wire types
// ============================================================================

type userRepresentation struct {
	ID               string                     `json:"id,omitempty"`
	Username         string                     `json:"username,omitempty"`
	Email            string                     `json:"email,omitempty"`
	EmailVerified    bool                       `json:"emailVerified"`
	Enabled          bool                       `json:"enabled"`
	FirstName        string                     `json:"firstName,omitempty"`
	LastName         string                     `json:"lastName,omitempty"`
	CreatedTimestamp int64                      `json:"createdTimestamp,omitempty"`
	Attributes       map[string][]string        `json:"attributes,omitempty"`
	Credentials      []credentialRepresentation `json:"credentials,omitempty"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type keycloakErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorMessage     string `json:"errorMessage"`
}

func (r *userRepresentation) attr(name string) string {
	if vs := r.Attributes[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (r *userRepresentation) setAttr(name string, values ...string) {
	if r.Attributes == nil {
		r.Attributes = make(map[string][]string)
	}
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		delete(r.Attributes, name)
		return
	}
	r.Attributes[name] = values
}

func (r *userRepresentation) toIdentity() *identity.Identity {
	claims := identity.Claims{
		Roles:       append([]string{}, r.Attributes[attrRoles]...),
		Permissions: append([]string{}, r.Attributes[attrPermissions]...),
	}
	if org := r.attr(attrOrganizationID); org != "" {
		claims.OrganizationID = &org
	}

	displayName := r.attr(attrDisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(r.FirstName + " " + r.LastName)
	}

	return &identity.Identity{
		ID:            kernel.NewIdentityID(r.ID),
		Email:         r.Email,
		DisplayName:   displayName,
		PhoneNumber:   r.attr(attrPhoneNumber),
		EmailVerified: r.EmailVerified,
		Disabled:      !r.Enabled,
		Claims:        claims,
		CreatedAt:     time.UnixMilli(r.CreatedTimestamp).UTC(),
	}
}

// ============================================================================
// Transport
// ============================================================================

// nativeCode derives a stable native code from a Keycloak error response.
func nativeCode(resp *httpx.Response) (string, string) {
	var body keycloakErrorBody
	_ = json.Unmarshal(resp.Body, &body)
	msg := body.ErrorMessage
	if msg == "" {
		msg = body.ErrorDescription
	}
	if msg == "" {
		msg = body.Error
	}
	lower := strings.ToLower(msg)

	switch resp.StatusCode {
	case http.StatusConflict:
		switch {
		case strings.Contains(lower, "email"):
			return kcUserExistsEmail, msg
		case strings.Contains(lower, "phone"):
			return kcUserExistsPhone, msg
		case strings.Contains(lower, "username"):
			return kcUserExistsUsername, msg
		}
	case http.StatusBadRequest:
		if strings.HasPrefix(body.Error, "invalidPassword") || strings.HasPrefix(body.ErrorMessage, "invalidPassword") {
			return kcInvalidPassword, msg
		}
		if strings.Contains(lower, "invalidemail") || strings.Contains(lower, "invalid-email") {
			return kcInvalidEmail, msg
		}
		if body.Error == kcInvalidGrant {
			return kcInvalidGrant, msg
		}
	case http.StatusNotFound:
		return kcUserNotFound, msg
	case http.StatusUnauthorized, http.StatusForbidden:
		return kcUnauthorizedClient, msg
	}
	return kcUnexpectedResponse, msg
}

func (k *KeycloakProvider) call(ctx context.Context, method, p string, query url.Values, body interface{}) (*httpx.Response, error) {
	resp, err := k.admin.Do(ctx, method, p, query, body, nil)
	if err != nil {
		return nil, identity.TransportError(err)
	}
	if resp.IsError() {
		code, msg := nativeCode(resp)
		return nil, keycloakNativeCodes.Map(code, msg, nil).WithDetail("status", resp.StatusCode)
	}
	return resp, nil
}

func userPath(id kernel.IdentityID, sub ...string) string {
	return path.Join(append([]string{"/users", url.PathEscape(id.String())}, sub...)...)
}

func (k *KeycloakProvider) getUser(ctx context.Context, id kernel.IdentityID) (*userRepresentation, error) {
	resp, err := k.call(ctx, http.MethodGet, userPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var rep userRepresentation
	if err := resp.DecodeJSON(&rep); err != nil {
		return nil, identity.TransportError(err)
	}
	return &rep, nil
}

func (k *KeycloakProvider) putUser(ctx context.Context, rep *userRepresentation) error {
	rep.Credentials = nil
	_, err := k.call(ctx, http.MethodPut, userPath(kernel.IdentityID(rep.ID)), nil, rep)
	return err
}

// ensurePhoneFree enforces phone uniqueness, which the realm does not.
func (k *KeycloakProvider) ensurePhoneFree(ctx context.Context, phone string, self kernel.IdentityID) error {
	if phone == "" {
		return nil
	}
	q := url.Values{}
	q.Set("q", attrPhoneNumber+":"+phone)
	q.Set("exact", "true")
	resp, err := k.call(ctx, http.MethodGet, "/users", q, nil)
	if err != nil {
		return err
	}
	var users []userRepresentation
	if err := resp.DecodeJSON(&users); err != nil {
		return identity.TransportError(err)
	}
	for _, u := range users {
		if u.ID != self.String() {
			return keycloakNativeCodes.Map(kcUserExistsPhone, "User exists with same phone_number", nil)
		}
	}
	return nil
}

// ============================================================================
// identity.Provider
// ============================================================================

func (k *KeycloakProvider) CreateIdentity(ctx context.Context, in identity.CreateInput) (*identity.Identity, error) {
	if err := k.ensurePhoneFree(ctx, in.PhoneNumber, ""); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	rep := &userRepresentation{
		Username:  email,
		Email:     email,
		Enabled:   true,
		FirstName: in.DisplayName,
		Credentials: []credentialRepresentation{
			{Type: "password", Value: in.Password},
		},
	}
	rep.setAttr(attrDisplayName, in.DisplayName)
	rep.setAttr(attrPhoneNumber, in.PhoneNumber)

	resp, err := k.call(ctx, http.MethodPost, "/users", nil, rep)
	if err != nil {
		return nil, err
	}

	location := resp.Header.Get("Location")
	idx := strings.LastIndex(location, keycloakLocationUsers)
	if idx < 0 {
		return nil, keycloakNativeCodes.Map(kcUnexpectedResponse, "create user returned no location", nil)
	}
	// The user exists from here on; callers re-read it if they need the
	// server's view.
	rep.ID = location[idx+len(keycloakLocationUsers):]
	rep.Credentials = nil
	rep.CreatedTimestamp = time.Now().UnixMilli()
	return rep.toIdentity(), nil
}

func (k *KeycloakProvider) VerifyToken(ctx context.Context, token string) (*identity.AuthenticatedPrincipal, error) {
	idToken, err := k.verifier.Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, keycloakNativeCodes.Map(kcTokenExpired, err.Error(), err)
		}
		return nil, keycloakNativeCodes.Map(kcInvalidToken, err.Error(), err)
	}

	var tc struct {
		Subject        string   `json:"sub"`
		Email          string   `json:"email"`
		EmailVerified  bool     `json:"email_verified"`
		Roles          []string `json:"roles"`
		Permissions    []string `json:"permissions"`
		OrganizationID string   `json:"organization_id"`
		RealmAccess    struct {
			Roles []string `json:"roles"`
		} `json:"realm_access"`
	}
	if err := idToken.Claims(&tc); err != nil || tc.Subject == "" {
		return nil, keycloakNativeCodes.Map(kcInvalidToken, "token claims could not be decoded", err)
	}

	// Signature checks alone do not see accounts disabled after issuance.
	rep, err := k.getUser(ctx, kernel.NewIdentityID(tc.Subject))
	if err != nil {
		if errx.IsCode(err, identity.CodeUserNotFound) {
			return nil, keycloakNativeCodes.Map(kcInvalidToken, "token subject no longer exists", err)
		}
		return nil, err
	}
	if !rep.Enabled {
		return nil, keycloakNativeCodes.Map(kcUserDisabled, "user is disabled", nil)
	}

	roles := tc.Roles
	if len(roles) == 0 {
		for _, r := range tc.RealmAccess.Roles {
			if identity.IsKnownRole(r) {
				roles = append(roles, r)
			}
		}
	}
	claims := identity.Claims{
		Roles:       append([]string{}, roles...),
		Permissions: append([]string{}, tc.Permissions...),
	}
	if tc.OrganizationID != "" {
		claims.OrganizationID = &tc.OrganizationID
	}

	return &identity.AuthenticatedPrincipal{
		IdentityID:    kernel.NewIdentityID(tc.Subject),
		Email:         tc.Email,
		EmailVerified: tc.EmailVerified,
		Claims:        claims,
	}, nil
}

func (k *KeycloakProvider) UpdateIdentity(ctx context.Context, id kernel.IdentityID, in identity.UpdateInput) (*identity.Identity, error) {
	rep, err := k.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.PhoneNumber != nil {
		if err := k.ensurePhoneFree(ctx, *in.PhoneNumber, id); err != nil {
			return nil, err
		}
		rep.setAttr(attrPhoneNumber, *in.PhoneNumber)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != rep.Email {
			if rep.Username == rep.Email {
				rep.Username = email
			}
			rep.Email = email
			rep.EmailVerified = false
		}
	}
	if err := k.putUser(ctx, rep); err != nil {
		return nil, err
	}
	return rep.toIdentity(), nil
}

func (k *KeycloakProvider) SetPassword(ctx context.Context, id kernel.IdentityID, password string) error {
	_, err := k.call(ctx, http.MethodPut, userPath(id, "reset-password"), nil, credentialRepresentation{
		Type:  "password",
		Value: password,
	})
	return err
}

func (k *KeycloakProvider) SetClaims(ctx context.Context, id kernel.IdentityID, claims identity.Claims) error {
	rep, err := k.getUser(ctx, id)
	if err != nil {
		return err
	}
	rep.setAttr(attrRoles, claims.Roles...)
	rep.setAttr(attrPermissions, claims.Permissions...)
	if claims.OrganizationID != nil {
		rep.setAttr(attrOrganizationID, *claims.OrganizationID)
	} else {
		rep.setAttr(attrOrganizationID)
	}
	return k.putUser(ctx, rep)
}

func (k *KeycloakProvider) GetByID(ctx context.Context, id kernel.IdentityID) (*identity.Identity, error) {
	rep, err := k.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return rep.toIdentity(), nil
}

func (k *KeycloakProvider) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	q := url.Values{}
	q.Set("email", strings.ToLower(strings.TrimSpace(email)))
	q.Set("exact", "true")
	resp, err := k.call(ctx, http.MethodGet, "/users", q, nil)
	if err != nil {
		return nil, err
	}
	var users []userRepresentation
	if err := resp.DecodeJSON(&users); err != nil {
		return nil, identity.TransportError(err)
	}
	if len(users) == 0 {
		return nil, keycloakNativeCodes.Map(kcUserNotFound, "no user with this email", nil)
	}
	return users[0].toIdentity(), nil
}

func (k *KeycloakProvider) Disable(ctx context.Context, id kernel.IdentityID) error {
	rep, err := k.getUser(ctx, id)
	if err != nil {
		return err
	}
	rep.Enabled = false
	return k.putUser(ctx, rep)
}

func (k *KeycloakProvider) RevokeTokens(ctx context.Context, id kernel.IdentityID) error {
	_, err := k.call(ctx, http.MethodPost, userPath(id, "logout"), nil, nil)
	return err
}

func (k *KeycloakProvider) DeleteIdentity(ctx context.Context, id kernel.IdentityID) error {
	_, err := k.call(ctx, http.MethodDelete, userPath(id), nil, nil)
	return err
}
