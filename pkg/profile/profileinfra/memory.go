package profileinfra

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
)

// MemoryRepository keeps profiles in process memory with the same unique
// constraints as the profiles table.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[kernel.IdentityID]profile.ProfileRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[kernel.IdentityID]profile.ProfileRecord)}
}

var _ profile.Repository = (*MemoryRepository)(nil)

func clone(rec profile.ProfileRecord) profile.ProfileRecord {
	rec.RoleIDs = append([]string{}, rec.RoleIDs...)
	return rec
}

func (r *MemoryRepository) usernameTaken(rec profile.ProfileRecord) bool {
	for ref, other := range r.records {
		if ref != rec.IdentityRef && other.Type == rec.Type && other.Username == rec.Username {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Insert(ctx context.Context, rec profile.ProfileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.IdentityRef]; exists {
		return profile.ErrDuplicate("identity_ref already has a profile")
	}
	if r.usernameTaken(rec) {
		return profile.ErrDuplicate("username already taken")
	}
	r.records[rec.IdentityRef] = clone(rec)
	return nil
}

func (r *MemoryRepository) FindByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) (*profile.ProfileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[identityRef]
	if !ok {
		return nil, profile.ErrNotFound().WithDetail("identity_ref", identityRef)
	}
	out := clone(rec)
	return &out, nil
}

func (r *MemoryRepository) FindByUsername(ctx context.Context, username string, principalType profile.PrincipalType) (*profile.ProfileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.Username == username && rec.Type == principalType {
			out := clone(rec)
			return &out, nil
		}
	}
	return nil, profile.ErrNotFound().WithDetail("username", username).WithDetail("type", principalType)
}

func (r *MemoryRepository) Update(ctx context.Context, rec profile.ProfileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[rec.IdentityRef]
	if !ok {
		return profile.ErrNotFound().WithDetail("identity_ref", rec.IdentityRef)
	}
	if r.usernameTaken(rec) {
		return profile.ErrDuplicate("username already taken")
	}
	rec.ID = current.ID
	rec.Type = current.Type
	rec.CreatedAt = current.CreatedAt
	r.records[rec.IdentityRef] = clone(rec)
	return nil
}

func (r *MemoryRepository) DeleteByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[identityRef]; !ok {
		return profile.ErrNotFound().WithDetail("identity_ref", identityRef)
	}
	delete(r.records, identityRef)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, filter profile.Filter, opts kernel.PaginationOptions) ([]profile.ProfileRecord, int, error) {
	opts = opts.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.mu.RLock()
	matched := make([]profile.ProfileRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Active != nil && rec.Active != *filter.Active {
			continue
		}
		if search != "" && !containsAny(search, rec.Username, rec.Email, rec.FirstName, rec.LastName) {
			continue
		}
		matched = append(matched, clone(rec))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].IdentityRef < matched[j].IdentityRef
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func containsAny(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
