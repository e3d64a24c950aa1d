package provisioning

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
)

// ============================================================================
// Views
// ============================================================================

// ProvisionedUser joins the identity provider's view of a principal with its
// profile record. It is only built when both halves exist and reference
// each other.
type ProvisionedUser struct {
	Identity identity.Identity     `json:"identity"`
	Profile  profile.ProfileRecord `json:"profile"`
}

// NewProvisionedUser joins the two halves, refusing records that belong to
// different principals.
func NewProvisionedUser(id *identity.Identity, rec *profile.ProfileRecord) (*ProvisionedUser, error) {
	if id == nil || rec == nil {
		return nil, ErrRegistry.New(CodeInconsistentView)
	}
	if rec.IdentityRef != id.ID {
		return nil, ErrRegistry.New(CodeInconsistentView).
			WithDetail("identity_id", id.ID.String()).
			WithDetail("identity_ref", rec.IdentityRef.String())
	}
	return &ProvisionedUser{Identity: *id, Profile: *rec}, nil
}

func (u *ProvisionedUser) IdentityID() kernel.IdentityID { return u.Identity.ID }

// ============================================================================
// Requests
// ============================================================================

// CreateRequest carries everything needed to provision both halves of a
// principal. Password policy is left to the identity provider.
type CreateRequest struct {
	Email            string                `json:"email"`
	Password         string                `json:"password"`
	DisplayName      string                `json:"display_name,omitempty"`
	PhoneCountryCode string                `json:"phone_country_code,omitempty"`
	PhoneNumber      string                `json:"phone_number,omitempty"`
	Type             profile.PrincipalType `json:"type"`
	Username         string                `json:"username"`
	FirstName        string                `json:"first_name"`
	LastName         string                `json:"last_name"`
	RoleIDs          []string              `json:"role_ids,omitempty"`
	InitialRole      string                `json:"initial_role,omitempty"`
}

func (r CreateRequest) Validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil || strings.TrimSpace(r.Email) == "" {
		return ErrInvalidRequest("email is not a valid address")
	}
	if r.Password == "" {
		return ErrInvalidRequest("password is required")
	}
	if strings.TrimSpace(r.Username) == "" {
		return ErrInvalidRequest("username is required")
	}
	if r.Type != "" && !r.Type.IsValid() {
		return ErrInvalidRequest("type must be user or customer").WithDetail("type", r.Type)
	}
	if r.InitialRole != "" && !identity.IsKnownRole(r.InitialRole) {
		return ErrInvalidRequest("unknown initial role").WithDetail("role", r.InitialRole)
	}
	return nil
}

// Phone returns the E.164-style number sent to the identity provider, or ""
// unless both parts are present.
func (r CreateRequest) Phone() string {
	return composePhone(r.PhoneCountryCode, r.PhoneNumber)
}

// IdentityInput is the provider-side half of the request.
func (r CreateRequest) IdentityInput() identity.CreateInput {
	display := strings.TrimSpace(r.DisplayName)
	if display == "" {
		display = strings.TrimSpace(r.FirstName + " " + r.LastName)
	}
	return identity.CreateInput{
		Email:       strings.TrimSpace(r.Email),
		Password:    r.Password,
		DisplayName: display,
		PhoneNumber: r.Phone(),
	}
}

// ProfileRequest is the store-side half of the request for id.
func (r CreateRequest) ProfileRequest(id kernel.IdentityID) profile.CreateRequest {
	t := r.Type
	if t == "" {
		t = profile.PrincipalTypeUser
	}
	return profile.CreateRequest{
		IdentityRef:      id,
		Type:             t,
		Username:         r.Username,
		Email:            strings.TrimSpace(r.Email),
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		PhoneCountryCode: r.PhoneCountryCode,
		PhoneNumber:      r.PhoneNumber,
		RoleIDs:          r.RoleIDs,
	}
}

// IdentityUpdate derives the provider-side payload of patch against the
// current record. ok is false when the patch only touches store fields.
//
// A phone component missing from the patch is taken from current. The
// provider's phone is cleared when the local number is cleared or when the
// patch leaves no complete number where there was one. A number that never
// had a country code is not sent.
func IdentityUpdate(patch profile.Patch, current profile.ProfileRecord) (in identity.UpdateInput, ok bool) {
	if email, set := patch.Email.Get(); set {
		e := strings.TrimSpace(email)
		in.Email = &e
		ok = true
	}
	if patch.TouchesPhone() {
		cc := current.PhoneCountryCode
		if patch.PhoneCountryCode.IsSet() {
			cc = patch.PhoneCountryCode.OrElse("")
		}
		local := current.PhoneNumber
		if patch.PhoneNumber.IsSet() {
			local = patch.PhoneNumber.OrElse("")
		}
		switch phone := composePhone(cc, local); {
		case phone != "":
			in.PhoneNumber = &phone
			ok = true
		case strings.TrimSpace(local) == "",
			composePhone(current.PhoneCountryCode, current.PhoneNumber) != "":
			cleared := ""
			in.PhoneNumber = &cleared
			ok = true
		}
	}
	return in, ok
}

func composePhone(countryCode, local string) string {
	if strings.TrimSpace(countryCode) == "" || strings.TrimSpace(local) == "" {
		return ""
	}
	return identity.ComposePhoneNumber(countryCode, local)
}

// ============================================================================
// Credential changes
// ============================================================================

// SelectorType says how the principal of a credential change was located.
type SelectorType string

const (
	SelectorEmail            SelectorType = "email"
	SelectorUserUsername     SelectorType = "user_username"
	SelectorCustomerUsername SelectorType = "customer_username"
)

// SelectorTypeFor maps a principal type to its username selector.
func SelectorTypeFor(t profile.PrincipalType) SelectorType {
	if t == profile.PrincipalTypeCustomer {
		return SelectorCustomerUsername
	}
	return SelectorUserUsername
}

type CredentialChangeResult struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Selector     string            `json:"selector"`
	SelectorType SelectorType      `json:"selector_type"`
	IdentityID   kernel.IdentityID `json:"identity_id"`
}

// ============================================================================
// Orphans
// ============================================================================

// Orphan describes an identity that was left behind without a profile.
type Orphan struct {
	IdentityID kernel.IdentityID `json:"identity_id"`
	Operation  string            `json:"operation"`
	FailedStep string            `json:"failed_step"`
	Cause      string            `json:"cause"`
	DetectedAt time.Time         `json:"detected_at"`
}
