package profile

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/ptrx"
)

// PrincipalType discriminates the two kinds of principal sharing the store.
type PrincipalType string

const (
	PrincipalTypeUser     PrincipalType = "user"
	PrincipalTypeCustomer PrincipalType = "customer"
)

func (t PrincipalType) IsValid() bool {
	return t == PrincipalTypeUser || t == PrincipalTypeCustomer
}

func (t PrincipalType) String() string { return string(t) }

// ============================================================================
// Entity
// ============================================================================

// ProfileRecord is the business half of a principal. IdentityRef is set once
// at creation and never changes.
type ProfileRecord struct {
	ID               kernel.ProfileID  `json:"profile_id"`
	IdentityRef      kernel.IdentityID `json:"identity_ref"`
	Type             PrincipalType     `json:"type"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	PhoneCountryCode string            `json:"phone_country_code,omitempty"`
	PhoneNumber      string            `json:"phone_number,omitempty"`
	Active           bool              `json:"active"`
	RoleIDs          []string          `json:"role_ids"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (p *ProfileRecord) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ============================================================================
// Requests
// ============================================================================

// CreateRequest creates a profile for an existing identity.
type CreateRequest struct {
	IdentityRef      kernel.IdentityID `json:"identity_ref"`
	Type             PrincipalType     `json:"type"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	PhoneCountryCode string            `json:"phone_country_code,omitempty"`
	PhoneNumber      string            `json:"phone_number,omitempty"`
	RoleIDs          []string          `json:"role_ids,omitempty"`
}

func (r CreateRequest) Validate() error {
	if r.IdentityRef.IsEmpty() {
		return ErrInvalidRequest("identity_ref is required")
	}
	if !r.Type.IsValid() {
		return ErrInvalidRequest("type must be user or customer").WithDetail("type", r.Type)
	}
	if strings.TrimSpace(r.Username) == "" {
		return ErrInvalidRequest("username is required")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return ErrInvalidRequest("email is not a valid address")
		}
	}
	return nil
}

// Patch is a partial update. Absent fields are left alone; null clears
// fields that may be empty. It has no identity_ref field by construction.
type Patch struct {
	Email            ptrx.Optional[string]   `json:"email,omitzero"`
	Username         ptrx.Optional[string]   `json:"username,omitzero"`
	FirstName        ptrx.Optional[string]   `json:"first_name,omitzero"`
	LastName         ptrx.Optional[string]   `json:"last_name,omitzero"`
	PhoneCountryCode ptrx.Optional[string]   `json:"phone_country_code,omitzero"`
	PhoneNumber      ptrx.Optional[string]   `json:"phone_number,omitzero"`
	Active           ptrx.Optional[bool]     `json:"active,omitzero"`
	RoleIDs          ptrx.Optional[[]string] `json:"role_ids,omitzero"`
}

// IsEmpty reports whether no field is present.
func (p Patch) IsEmpty() bool {
	return !p.Email.IsSet() &&
		!p.Username.IsSet() &&
		!p.FirstName.IsSet() &&
		!p.LastName.IsSet() &&
		!p.PhoneCountryCode.IsSet() &&
		!p.PhoneNumber.IsSet() &&
		!p.Active.IsSet() &&
		!p.RoleIDs.IsSet()
}

// TouchesPhone reports whether either phone component is present.
func (p Patch) TouchesPhone() bool {
	return p.PhoneCountryCode.IsSet() || p.PhoneNumber.IsSet()
}

func (p Patch) Validate() error {
	if p.IsEmpty() {
		return ErrInvalidRequest("patch must set at least one field")
	}
	if p.Email.IsNull() {
		return ErrInvalidRequest("email cannot be null")
	}
	if email, ok := p.Email.Get(); ok {
		if _, err := mail.ParseAddress(email); err != nil {
			return ErrInvalidRequest("email is not a valid address")
		}
	}
	if p.Username.IsNull() {
		return ErrInvalidRequest("username cannot be null")
	}
	if username, ok := p.Username.Get(); ok && strings.TrimSpace(username) == "" {
		return ErrInvalidRequest("username cannot be blank")
	}
	if p.Active.IsNull() {
		return ErrInvalidRequest("active cannot be null")
	}
	return nil
}

// Apply writes the present fields onto rec.
func (p Patch) Apply(rec *ProfileRecord) {
	if v, ok := p.Email.Get(); ok {
		rec.Email = v
	}
	if v, ok := p.Username.Get(); ok {
		rec.Username = v
	}
	if p.FirstName.IsSet() {
		rec.FirstName = p.FirstName.OrElse("")
	}
	if p.LastName.IsSet() {
		rec.LastName = p.LastName.OrElse("")
	}
	if p.PhoneCountryCode.IsSet() {
		rec.PhoneCountryCode = p.PhoneCountryCode.OrElse("")
	}
	if p.PhoneNumber.IsSet() {
		rec.PhoneNumber = p.PhoneNumber.OrElse("")
	}
	if v, ok := p.Active.Get(); ok {
		rec.Active = v
	}
	if p.RoleIDs.IsSet() {
		rec.RoleIDs = append([]string{}, p.RoleIDs.OrElse(nil)...)
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   PrincipalType `query:"type"`
	Active *bool         `query:"active"`
	Search string        `query:"search"`
}
