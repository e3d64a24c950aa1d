package profilesrv

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/google/uuid"
)

// Service is the profile service's own implementation of profile.Store.
type Service struct {
	repo profile.Repository
	now  func() time.Time
}

func NewService(repo profile.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

var _ profile.Store = (*Service)(nil)

func (s *Service) Create(ctx context.Context, req profile.CreateRequest) (*profile.ProfileRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := profile.ProfileRecord{
		ID:               kernel.NewProfileID(uuid.NewString()),
		IdentityRef:      req.IdentityRef,
		Type:             req.Type,
		Username:         strings.TrimSpace(req.Username),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		PhoneCountryCode: req.PhoneCountryCode,
		PhoneNumber:      req.PhoneNumber,
		Active:           true,
		RoleIDs:          append([]string{}, req.RoleIDs...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"profile_id":   rec.ID,
		"identity_ref": rec.IdentityRef,
		"type":         rec.Type,
	}).Info("profile created")
	return &rec, nil
}

func (s *Service) Get(ctx context.Context, identityRef kernel.IdentityID) (*profile.ProfileRecord, error) {
	return s.repo.FindByIdentityRef(ctx, identityRef)
}

// Update applies patch to the stored record. Applying the same patch twice
// yields the same record.
func (s *Service) Update(ctx context.Context, identityRef kernel.IdentityID, patch profile.Patch) (*profile.ProfileRecord, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.repo.FindByIdentityRef(ctx, identityRef)
	if err != nil {
		return nil, err
	}

	patch.Apply(rec)
	rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))
	rec.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, identityRef kernel.IdentityID) error {
	if err := s.repo.DeleteByIdentityRef(ctx, identityRef); err != nil {
		return err
	}
	logx.WithContext(ctx).WithField("identity_ref", identityRef).Info("profile deleted")
	return nil
}

func (s *Service) FindByUsername(ctx context.Context, username string, principalType profile.PrincipalType) (*profile.ProfileRecord, error) {
	if !principalType.IsValid() {
		return nil, profile.ErrInvalidRequest("type must be user or customer")
	}
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username), principalType)
}

func (s *Service) List(ctx context.Context, filter profile.Filter, opts kernel.PaginationOptions) (*kernel.Paginated[profile.ProfileRecord], error) {
	opts = opts.Normalize()
	items, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	page := kernel.NewPaginated(items, opts.Page, opts.PageSize, total)
	return &page, nil
}
