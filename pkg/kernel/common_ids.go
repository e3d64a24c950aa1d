package kernel

// IdentityID is the provider-assigned id of an identity. Profile records
// reference it as their identity_ref.
type IdentityID string

func NewIdentityID(id string) IdentityID { return IdentityID(id) }
func (i IdentityID) String() string      { return string(i) }
func (i IdentityID) IsEmpty() bool       { return string(i) == "" }

// ProfileID is the store-assigned UUID of a profile record.
type ProfileID string

func NewProfileID(id string) ProfileID { return ProfileID(id) }
func (p ProfileID) String() string     { return string(p) }
func (p ProfileID) IsEmpty() bool      { return string(p) == "" }

type OrganizationID string

func (o OrganizationID) String() string { return string(o) }
func (o OrganizationID) IsEmpty() bool  { return string(o) == "" }
