package provisioninginfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/asyncx"
	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/jobx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
)

const (
	ReconcileJobType = "provisioning.reconcile_orphan"
	ReconcileQueue   = "reconcile"
)

// ============================================================================
// Enqueueing
// ============================================================================

// JobOrphanHandler turns every orphan into a reconcile job.
type JobOrphanHandler struct {
	jobs       jobx.JobEnqueuer
	maxRetries int
}

func NewJobOrphanHandler(jobs jobx.JobEnqueuer, maxRetries int) *JobOrphanHandler {
	return &JobOrphanHandler{jobs: jobs, maxRetries: maxRetries}
}

func (h *JobOrphanHandler) HandleOrphan(ctx context.Context, orphan provisioning.Orphan) error {
	job, err := jobx.NewJob(ReconcileJobType, ReconcileQueue, orphan)
	if err != nil {
		return err
	}
	job.MaxRetries = h.maxRetries

	jobID, err := h.jobs.Enqueue(ctx, job)
	if err != nil {
		return err
	}
	logx.WithContext(ctx).WithFields(logx.Fields{
		"identity_id": orphan.IdentityID,
		"job_id":      jobID,
	}).Info("reconcile job enqueued")
	return nil
}

// ============================================================================
// Reconciling
// ============================================================================

// Reconciler brings one principal back to a consistent state: either both
// halves exist or neither does. It never recreates a missing half.
type Reconciler struct {
	provider identity.Provider
	store    profile.Store
	timeout  time.Duration
}

func NewReconciler(provider identity.Provider, store profile.Store, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reconciler{provider: provider, store: store, timeout: timeout}
}

// Register installs the reconcile handler on client.
func (r *Reconciler) Register(client *jobx.Client) {
	client.Register(ReconcileJobType, r.Handle)
}

// Outcome names what Reconcile did.
type Outcome string

const (
	OutcomeConsistent      Outcome = "consistent"
	OutcomeIdentityDeleted Outcome = "identity_deleted"
	OutcomeProfileDeleted  Outcome = "profile_deleted"
	OutcomeNothingLeft     Outcome = "nothing_left"
)

func (r *Reconciler) Handle(ctx context.Context, job *jobx.JobInfo) error {
	var orphan provisioning.Orphan
	if err := job.Decode(&orphan); err != nil {
		return err
	}
	_, err := r.Reconcile(ctx, orphan.IdentityID)
	return err
}

// Reconcile is safe to repeat. Any error leaves the principal as it was
// found so the job can be retried.
func (r *Reconciler) Reconcile(ctx context.Context, id kernel.IdentityID) (Outcome, error) {
	exists, err := asyncx.All(ctx,
		func(ctx context.Context) (bool, error) {
			_, err := asyncx.Bounded(ctx, r.timeout, func(ctx context.Context) (*identity.Identity, error) {
				return r.provider.GetByID(ctx, id)
			})
			return found(err, identity.CodeUserNotFound)
		},
		func(ctx context.Context) (bool, error) {
			_, err := asyncx.Bounded(ctx, r.timeout, func(ctx context.Context) (*profile.ProfileRecord, error) {
				return r.store.Get(ctx, id)
			})
			return found(err, profile.CodeNotFound)
		},
	)
	if err != nil {
		return "", err
	}
	hasIdentity, hasProfile := exists[0], exists[1]

	log := logx.WithContext(ctx).WithField("identity_id", id)
	var outcome Outcome
	switch {
	case hasIdentity && hasProfile:
		outcome = OutcomeConsistent
	case hasIdentity:
		err = asyncx.BoundedErr(ctx, r.timeout, func(ctx context.Context) error {
			return r.provider.DeleteIdentity(ctx, id)
		})
		outcome = OutcomeIdentityDeleted
	case hasProfile:
		err = asyncx.BoundedErr(ctx, r.timeout, func(ctx context.Context) error {
			return r.store.Delete(ctx, id)
		})
		outcome = OutcomeProfileDeleted
	default:
		outcome = OutcomeNothingLeft
	}
	if err != nil {
		log.WithError(err).Warn("reconcile attempt failed")
		return "", err
	}

	log.WithField("outcome", outcome).Info("principal reconciled")
	return outcome, nil
}

// found turns a lookup error into an existence answer. notFound is a
// definite no; any other error is returned.
func found(err error, notFound *errx.ErrorCode) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errx.IsCode(err, notFound) {
		return false, nil
	}
	return false, err
}
