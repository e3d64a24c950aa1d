package provisioningsrv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/asyncx"
	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
	"github.com/Abraxas-365/provisioning/pkg/ptrx"
)

const (
	stepCreateIdentity = "create_identity"
	stepSetRole        = "set_role"
	stepCreateProfile  = "create_profile"
	stepDeleteIdentity = "delete_identity"
	stepDeleteProfile  = "delete_profile"
)

const DefaultRemoteTimeout = 5 * time.Second

// createClockSkew is how much older than the create call an identity may
// look and still be attributed to it.
const createClockSkew = time.Minute

// Orchestrator keeps the identity provider and the profile store in step
// for every operation that touches both. It holds no state between calls.
type Orchestrator struct {
	provider identity.Provider
	roles    provisioning.RoleAssigner
	store    profile.Store
	orphans  provisioning.OrphanHandler
	audit    provisioning.AuditService

	timeout     time.Duration
	defaultRole string
}

type Option func(*Orchestrator)

// WithRemoteTimeout bounds every call made to either remote system.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDefaultRole sets the role given when a create request names none.
func WithDefaultRole(role string) Option {
	return func(o *Orchestrator) {
		if identity.IsKnownRole(role) {
			o.defaultRole = role
		}
	}
}

func WithOrphanHandler(h provisioning.OrphanHandler) Option {
	return func(o *Orchestrator) { o.orphans = h }
}

func WithAuditService(a provisioning.AuditService) Option {
	return func(o *Orchestrator) { o.audit = a }
}

func NewOrchestrator(provider identity.Provider, roles provisioning.RoleAssigner, store profile.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		roles:       roles,
		store:       store,
		timeout:     DefaultRemoteTimeout,
		defaultRole: identity.DefaultRole,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ============================================================================
// Create
// ============================================================================

// Create provisions the identity first, assigns its role and then creates
// the profile. A failure after the identity exists deletes it again; if
// that deletion fails too the identity is reported as orphaned.
func (o *Orchestrator) Create(ctx context.Context, req provisioning.CreateRequest) (*provisioning.ProvisionedUser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role := req.InitialRole
	if role == "" {
		role = o.defaultRole
	}

	var (
		created *identity.Identity
		rec     *profile.ProfileRecord
		started = time.Now()
	)

	saga := provisioning.NewSaga("create").
		Step(stepCreateIdentity,
			func(ctx context.Context) error {
				id, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
					return o.provider.CreateIdentity(ctx, req.IdentityInput())
				})
				if err != nil {
					return o.discardAmbiguousIdentity(ctx, req.Email, started, err)
				}
				created = id
				return nil
			},
			func(ctx context.Context) error {
				return o.deleteIdentity(ctx, created.ID)
			}).
		Step(stepSetRole,
			func(ctx context.Context) error {
				return asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
					return o.roles.SetRole(ctx, created.ID, role)
				})
			}, nil).
		Step(stepCreateProfile,
			func(ctx context.Context) error {
				r, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
					return o.store.Create(ctx, req.ProfileRequest(created.ID))
				})
				if err != nil {
					o.discardAmbiguousProfile(ctx, created.ID, err)
					return err
				}
				rec = r
				return nil
			}, nil)

	if err := saga.Run(context.WithoutCancel(ctx)); err != nil {
		return nil, o.createFailed(ctx, created, err)
	}

	// Re-read so the view carries provider timestamps and the claims just set.
	fresh, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
		return o.provider.GetByID(ctx, created.ID)
	})
	if err != nil {
		logx.WithContext(ctx).WithField("identity_id", created.ID).WithError(err).
			Warn("provisioned identity could not be re-read")
		fresh = created
	}

	user, err := provisioning.NewProvisionedUser(fresh, rec)
	if err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.LogProvisioned(ctx, created.ID, rec.Username, role)
	}
	return user, nil
}

func (o *Orchestrator) createFailed(ctx context.Context, created *identity.Identity, err error) error {
	var failure *provisioning.Failure
	if !errors.As(err, &failure) {
		return err
	}

	if failure.Step == stepCreateIdentity {
		if errx.IsCode(failure.Err, provisioning.CodeOrphanedIdentity) {
			return failure.Err
		}
		logProviderError(ctx, failure.Err, "identity creation rejected", logx.Fields{"step": failure.Step})
		return failure.Err
	}

	log := logx.WithContext(ctx).WithFields(logx.Fields{
		"identity_id": created.ID,
		"failed_step": failure.Step,
	})

	if !failure.Clean() {
		compErr := failure.CompensationErrors[0]
		orphanErr := provisioning.ErrOrphanedIdentity(created.ID, failure.Err).
			WithDetail("failed_step", failure.Step).
			WithDetail("compensation_error", errx.CodeOf(compErr.Err))
		log.WithError(compErr.Err).WithField("cause", failure.Err.Error()).
			Error("compensation failed, identity orphaned")
		o.auditCompensation(ctx, created.ID, compErr.Step, false)
		o.reportOrphan(ctx, provisioning.Orphan{
			IdentityID: created.ID,
			Operation:  "create",
			FailedStep: failure.Step,
			Cause:      failure.Err.Error(),
		})
		return orphanErr
	}

	o.auditCompensation(ctx, created.ID, stepDeleteIdentity, true)
	log.WithError(failure.Err).Error("profile creation failed, identity rolled back")
	return provisioning.ErrProfileCreationFailed(created.ID, failure.Err).
		WithDetail("failed_step", failure.Step)
}

// discardAmbiguousIdentity handles a create that failed without a definite
// answer: the provider may have applied it. An identity for the email that
// is no older than the call and has no profile is deleted again. The
// returned error replaces cause only when that identity stays behind.
func (o *Orchestrator) discardAmbiguousIdentity(ctx context.Context, email string, started time.Time, cause error) error {
	if !errx.IsCode(cause, identity.CodeProviderUnavailable) {
		return cause
	}
	log := logx.WithContext(ctx).WithField("step", stepCreateIdentity)

	found, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
		return o.provider.GetByEmail(ctx, email)
	})
	if errx.IsCode(err, identity.CodeUserNotFound) {
		return cause
	}
	if err != nil {
		log.WithError(err).WithField("cause", cause.Error()).
			Error("identity creation outcome unknown, lookup failed")
		return cause
	}
	if found.CreatedAt.Before(started.Add(-createClockSkew)) {
		return cause
	}

	_, err = asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
		return o.store.Get(ctx, found.ID)
	})
	switch {
	case err == nil:
		return cause
	case errx.IsCode(err, profile.CodeNotFound):
		err = o.deleteIdentity(ctx, found.ID)
	}
	if err == nil {
		log.WithField("identity_id", found.ID).Warn("identity applied by failed create removed")
		o.auditCompensation(ctx, found.ID, stepDeleteIdentity, true)
		return cause
	}

	log.WithField("identity_id", found.ID).WithError(err).WithField("cause", cause.Error()).
		Error("identity applied by failed create could not be removed, identity orphaned")
	o.auditCompensation(ctx, found.ID, stepDeleteIdentity, false)
	o.reportOrphan(ctx, provisioning.Orphan{
		IdentityID: found.ID,
		Operation:  "create",
		FailedStep: stepCreateIdentity,
		Cause:      cause.Error(),
	})
	return provisioning.ErrOrphanedIdentity(found.ID, cause).
		WithDetail("failed_step", stepCreateIdentity).
		WithDetail("compensation_error", errx.CodeOf(err))
}

// discardAmbiguousProfile removes a profile that may have been written even
// though the store reported a failure, so rolling back the identity cannot
// leave a profile behind.
func (o *Orchestrator) discardAmbiguousProfile(ctx context.Context, id kernel.IdentityID, cause error) {
	if !errx.IsCode(cause, profile.CodeStoreUnavailable) && !errx.IsCode(cause, profile.CodeUnexpectedStoreReply) {
		return
	}
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.store.Delete(ctx, id)
	})
	if err == nil || errx.IsCode(err, profile.CodeNotFound) {
		return
	}
	logx.WithContext(ctx).WithField("identity_ref", id).WithError(err).
		Error("profile may outlive its identity")
	o.reportOrphan(ctx, provisioning.Orphan{
		IdentityID: id,
		Operation:  "create",
		FailedStep: stepDeleteProfile,
		Cause:      err.Error(),
	})
}

// ============================================================================
// Update
// ============================================================================

// Update applies patch to both systems. Provider-tracked fields go to the
// identity provider first; the store is only written once the provider has
// accepted them.
func (o *Orchestrator) Update(ctx context.Context, ref kernel.IdentityID, patch profile.Patch) (*provisioning.ProvisionedUser, error) {
	if patch.IsEmpty() {
		return nil, provisioning.ErrInvalidPatch("patch must set at least one field")
	}
	if err := patch.Validate(); err != nil {
		return nil, invalidPatch(err)
	}

	current, err := o.profileOf(ctx, ref)
	if err != nil {
		return nil, err
	}

	input, touchesIdentity := provisioning.IdentityUpdate(patch, *current)

	var updated *identity.Identity
	if touchesIdentity {
		updated, err = asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
			return o.provider.UpdateIdentity(ctx, ref, input)
		})
		if err != nil {
			logProviderError(ctx, err, "identity update rejected", logx.Fields{"identity_ref": ref})
			return nil, err
		}
	}

	rec, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
		return o.store.Update(ctx, ref, patch)
	})
	if err != nil {
		if !touchesIdentity {
			return nil, err
		}
		logx.WithContext(ctx).WithField("identity_ref", ref).WithError(err).
			Error("profile update failed after identity update")
		return nil, provisioning.ErrPartialUpdateFailure(ref, err)
	}

	if updated == nil {
		updated, err = o.identityOf(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	if o.audit != nil {
		o.audit.LogUpdated(ctx, ref, touchesIdentity, patchFields(patch))
	}
	return provisioning.NewProvisionedUser(updated, rec)
}

// ============================================================================
// Credentials
// ============================================================================

// ChangeCredentialByEmail sets a new password on the identity registered
// under email.
func (o *Orchestrator) ChangeCredentialByEmail(ctx context.Context, email, newPassword string) (*provisioning.CredentialChangeResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, provisioning.ErrInvalidRequest("email is required")
	}
	if newPassword == "" {
		return nil, provisioning.ErrInvalidRequest("password is required")
	}

	id, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
		return o.provider.GetByEmail(ctx, email)
	})
	if err != nil {
		logProviderError(ctx, err, "credential change target not resolved", logx.Fields{"selector_type": provisioning.SelectorEmail})
		return nil, err
	}

	return o.setPassword(ctx, id.ID, newPassword, email, provisioning.SelectorEmail)
}

// ChangeCredentialByUsername resolves username through the profile store
// and sets a new password on the identity it references. The profile
// itself is only read.
func (o *Orchestrator) ChangeCredentialByUsername(ctx context.Context, username string, principalType profile.PrincipalType, newPassword string) (*provisioning.CredentialChangeResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, provisioning.ErrInvalidRequest("username is required")
	}
	if !principalType.IsValid() {
		return nil, provisioning.ErrInvalidRequest("type must be user or customer").WithDetail("type", principalType)
	}
	if newPassword == "" {
		return nil, provisioning.ErrInvalidRequest("password is required")
	}

	rec, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
		return o.store.FindByUsername(ctx, username, principalType)
	})
	if err != nil {
		if errx.IsCode(err, profile.CodeNotFound) {
			return nil, provisioning.ErrIdentityNotFound(username).WithDetail("type", principalType)
		}
		return nil, err
	}

	return o.setPassword(ctx, rec.IdentityRef, newPassword, username, provisioning.SelectorTypeFor(principalType))
}

func (o *Orchestrator) setPassword(ctx context.Context, id kernel.IdentityID, password, selector string, selectorType provisioning.SelectorType) (*provisioning.CredentialChangeResult, error) {
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.provider.SetPassword(ctx, id, password)
	})
	if err != nil {
		logProviderError(ctx, err, "password change rejected", logx.Fields{
			"identity_id":   id,
			"selector_type": selectorType,
		})
		return nil, err
	}

	if o.audit != nil {
		o.audit.LogCredentialChanged(ctx, id, selectorType)
	}
	return &provisioning.CredentialChangeResult{
		Success:      true,
		Message:      "Password updated for " + selector,
		Selector:     selector,
		SelectorType: selectorType,
		IdentityID:   id,
	}, nil
}

// ============================================================================
// Reads and lifecycle
// ============================================================================

// Get reads both halves concurrently and joins them.
func (o *Orchestrator) Get(ctx context.Context, ref kernel.IdentityID) (*provisioning.ProvisionedUser, error) {
	idFuture := asyncx.Run(func() (*identity.Identity, error) {
		return o.identityOf(ctx, ref)
	})
	recFuture := asyncx.Run(func() (*profile.ProfileRecord, error) {
		return o.profileOf(ctx, ref)
	})

	rec, recErr := recFuture.Await()
	id, idErr := idFuture.Await()
	if recErr != nil {
		return nil, recErr
	}
	if idErr != nil {
		return nil, idErr
	}
	return provisioning.NewProvisionedUser(id, rec)
}

// Disable blocks sign-in on the provider and marks the profile inactive.
func (o *Orchestrator) Disable(ctx context.Context, ref kernel.IdentityID) (*provisioning.ProvisionedUser, error) {
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.provider.Disable(ctx, ref)
	})
	if err != nil {
		if errx.IsCode(err, identity.CodeUserNotFound) {
			return nil, provisioning.ErrIdentityNotFound(ref.String())
		}
		logProviderError(ctx, err, "identity disable failed", logx.Fields{"identity_ref": ref})
		return nil, err
	}

	// Sessions issued before the disable stop verifying once revoked.
	if err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.provider.RevokeTokens(ctx, ref)
	}); err != nil {
		logx.WithContext(ctx).WithField("identity_ref", ref).WithError(err).Warn("token revocation failed")
	}

	rec, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
		return o.store.Update(ctx, ref, profile.Patch{Active: ptrx.Some(false)})
	})
	if err != nil {
		logx.WithContext(ctx).WithField("identity_ref", ref).WithError(err).
			Error("profile deactivation failed after identity disable")
		return nil, provisioning.ErrPartialUpdateFailure(ref, err)
	}

	id, err := o.identityOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.LogDisabled(ctx, ref)
	}
	return provisioning.NewProvisionedUser(id, rec)
}

// Delete removes the profile and then the identity, the reverse of Create.
// A missing profile is tolerated so a half-finished delete can be retried.
func (o *Orchestrator) Delete(ctx context.Context, ref kernel.IdentityID) error {
	profileMissing := false
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.store.Delete(ctx, ref)
	})
	switch {
	case errx.IsCode(err, profile.CodeNotFound):
		profileMissing = true
	case err != nil:
		return err
	}

	err = asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.provider.DeleteIdentity(ctx, ref)
	})
	switch {
	case err == nil:
	case errx.IsCode(err, identity.CodeUserNotFound):
		if profileMissing {
			return provisioning.ErrIdentityNotFound(ref.String())
		}
	default:
		logx.WithContext(ctx).WithField("identity_id", ref).WithError(err).
			Error("identity deletion failed after profile deletion, identity orphaned")
		o.reportOrphan(ctx, provisioning.Orphan{
			IdentityID: ref,
			Operation:  "delete",
			FailedStep: stepDeleteIdentity,
			Cause:      err.Error(),
		})
		return provisioning.ErrOrphanedIdentity(ref, err).WithDetail("failed_step", stepDeleteIdentity)
	}

	if o.audit != nil {
		o.audit.LogDeleted(ctx, ref)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (o *Orchestrator) identityOf(ctx context.Context, ref kernel.IdentityID) (*identity.Identity, error) {
	id, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*identity.Identity, error) {
		return o.provider.GetByID(ctx, ref)
	})
	if errx.IsCode(err, identity.CodeUserNotFound) {
		return nil, provisioning.ErrIdentityNotFound(ref.String()).WithCause(err)
	}
	return id, err
}

func (o *Orchestrator) profileOf(ctx context.Context, ref kernel.IdentityID) (*profile.ProfileRecord, error) {
	rec, err := asyncx.Bounded(ctx, o.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
		return o.store.Get(ctx, ref)
	})
	if errx.IsCode(err, profile.CodeNotFound) {
		return nil, provisioning.ErrIdentityNotFound(ref.String()).WithCause(err)
	}
	return rec, err
}

// deleteIdentity is the compensation of identity creation. An identity that
// is already gone counts as deleted.
func (o *Orchestrator) deleteIdentity(ctx context.Context, id kernel.IdentityID) error {
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.provider.DeleteIdentity(ctx, id)
	})
	if errx.IsCode(err, identity.CodeUserNotFound) {
		return nil
	}
	return err
}

func (o *Orchestrator) reportOrphan(ctx context.Context, orphan provisioning.Orphan) {
	if o.orphans == nil {
		return
	}
	if orphan.DetectedAt.IsZero() {
		orphan.DetectedAt = time.Now().UTC()
	}
	err := asyncx.BoundedErr(ctx, o.timeout, func(ctx context.Context) error {
		return o.orphans.HandleOrphan(ctx, orphan)
	})
	if err != nil {
		logx.WithContext(ctx).WithField("identity_id", orphan.IdentityID).WithError(err).
			Error("orphaned identity could not be handed off for reconciliation")
	}
}

func (o *Orchestrator) auditCompensation(ctx context.Context, id kernel.IdentityID, step string, success bool) {
	if o.audit != nil {
		o.audit.LogCompensation(ctx, id, step, success)
	}
}

// logProviderError logs expected provider rejections at info and anything
// else at warn.
func logProviderError(ctx context.Context, err error, msg string, fields logx.Fields) {
	entry := logx.WithContext(ctx).WithFields(fields).WithError(err).WithField("code", errx.CodeOf(err))
	if identity.IsExpected(err) {
		entry.Info(msg)
		return
	}
	entry.Warn(msg)
}

func invalidPatch(cause error) *errx.Error {
	msg := cause.Error()
	var e *errx.Error
	if errors.As(cause, &e) {
		msg = e.Message
	}
	return provisioning.ErrInvalidPatch(msg).WithCause(cause)
}

func patchFields(p profile.Patch) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Email.IsSet(), "email")
	add(p.Username.IsSet(), "username")
	add(p.FirstName.IsSet(), "first_name")
	add(p.LastName.IsSet(), "last_name")
	add(p.PhoneCountryCode.IsSet(), "phone_country_code")
	add(p.PhoneNumber.IsSet(), "phone_number")
	add(p.Active.IsSet(), "active")
	add(p.RoleIDs.IsSet(), "role_ids")
	return fields
}
