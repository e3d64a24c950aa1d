package provisioningsrv_test

import (
	"context"
	"sync"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
)

// counter records calls by method and hands out injected failures.
type counter struct {
	mu        sync.Mutex
	calls     map[string]int
	fail      map[string]error
	failAfter map[string]error
}

func newCounter() *counter {
	return &counter{calls: map[string]int{}, fail: map[string]error{}, failAfter: map[string]error{}}
}

func (c *counter) hit(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.fail[method]
}

func (c *counter) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *counter) FailOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[method] = err
}

// FailAfter lets the wrapped call go through and then reports err, as a
// remote system does when the reply is lost.
func (c *counter) FailAfter(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAfter[method] = err
}

func (c *counter) after(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failAfter[method]
}

// countingProvider wraps a real provider.
type countingProvider struct {
	*counter
	next identity.Provider
}

func (p *countingProvider) CreateIdentity(ctx context.Context, in identity.CreateInput) (*identity.Identity, error) {
	if err := p.hit(ctx, "CreateIdentity"); err != nil {
		return nil, err
	}
	created, err := p.next.CreateIdentity(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := p.after("CreateIdentity"); err != nil {
		return nil, err
	}
	return created, nil
}

func (p *countingProvider) VerifyToken(ctx context.Context, token string) (*identity.AuthenticatedPrincipal, error) {
	if err := p.hit(ctx, "VerifyToken"); err != nil {
		return nil, err
	}
	return p.next.VerifyToken(ctx, token)
}

func (p *countingProvider) UpdateIdentity(ctx context.Context, id kernel.IdentityID, in identity.UpdateInput) (*identity.Identity, error) {
	if err := p.hit(ctx, "UpdateIdentity"); err != nil {
		return nil, err
	}
	return p.next.UpdateIdentity(ctx, id, in)
}

func (p *countingProvider) SetPassword(ctx context.Context, id kernel.IdentityID, password string) error {
	if err := p.hit(ctx, "SetPassword"); err != nil {
		return err
	}
	return p.next.SetPassword(ctx, id, password)
}

func (p *countingProvider) SetClaims(ctx context.Context, id kernel.IdentityID, claims identity.Claims) error {
	if err := p.hit(ctx, "SetClaims"); err != nil {
		return err
	}
	return p.next.SetClaims(ctx, id, claims)
}

func (p *countingProvider) GetByID(ctx context.Context, id kernel.IdentityID) (*identity.Identity, error) {
	if err := p.hit(ctx, "GetByID"); err != nil {
		return nil, err
	}
	return p.next.GetByID(ctx, id)
}

func (p *countingProvider) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	if err := p.hit(ctx, "GetByEmail"); err != nil {
		return nil, err
	}
	return p.next.GetByEmail(ctx, email)
}

func (p *countingProvider) Disable(ctx context.Context, id kernel.IdentityID) error {
	if err := p.hit(ctx, "Disable"); err != nil {
		return err
	}
	return p.next.Disable(ctx, id)
}

func (p *countingProvider) RevokeTokens(ctx context.Context, id kernel.IdentityID) error {
	if err := p.hit(ctx, "RevokeTokens"); err != nil {
		return err
	}
	return p.next.RevokeTokens(ctx, id)
}

func (p *countingProvider) DeleteIdentity(ctx context.Context, id kernel.IdentityID) error {
	if err := p.hit(ctx, "DeleteIdentity"); err != nil {
		return err
	}
	return p.next.DeleteIdentity(ctx, id)
}

// countingStore wraps a real store.
type countingStore struct {
	*counter
	next profile.Store
}

func (s *countingStore) Create(ctx context.Context, req profile.CreateRequest) (*profile.ProfileRecord, error) {
	if err := s.hit(ctx, "Create"); err != nil {
		return nil, err
	}
	return s.next.Create(ctx, req)
}

func (s *countingStore) Get(ctx context.Context, ref kernel.IdentityID) (*profile.ProfileRecord, error) {
	if err := s.hit(ctx, "Get"); err != nil {
		return nil, err
	}
	return s.next.Get(ctx, ref)
}

func (s *countingStore) Update(ctx context.Context, ref kernel.IdentityID, patch profile.Patch) (*profile.ProfileRecord, error) {
	if err := s.hit(ctx, "Update"); err != nil {
		return nil, err
	}
	return s.next.Update(ctx, ref, patch)
}

func (s *countingStore) Delete(ctx context.Context, ref kernel.IdentityID) error {
	if err := s.hit(ctx, "Delete"); err != nil {
		return err
	}
	return s.next.Delete(ctx, ref)
}

func (s *countingStore) FindByUsername(ctx context.Context, username string, t profile.PrincipalType) (*profile.ProfileRecord, error) {
	if err := s.hit(ctx, "FindByUsername"); err != nil {
		return nil, err
	}
	return s.next.FindByUsername(ctx, username, t)
}

func (s *countingStore) List(ctx context.Context, f profile.Filter, opts kernel.PaginationOptions) (*kernel.Paginated[profile.ProfileRecord], error) {
	if err := s.hit(ctx, "List"); err != nil {
		return nil, err
	}
	return s.next.List(ctx, f, opts)
}

type orphanRecorder struct {
	mu      sync.Mutex
	orphans []provisioning.Orphan
}

func (r *orphanRecorder) HandleOrphan(_ context.Context, o provisioning.Orphan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, o)
	return nil
}

func (r *orphanRecorder) All() []provisioning.Orphan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provisioning.Orphan(nil), r.orphans...)
}
