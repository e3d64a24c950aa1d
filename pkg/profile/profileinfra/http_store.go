package profileinfra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/profile"
)

const profilesPath = "/api/v1/profiles"

// HTTPStore is the client side of the profile service.
type HTTPStore struct {
	client       *httpx.Client
	serviceToken string
}

// NewHTTPStore sends serviceToken as the bearer token when set, otherwise
// it forwards the caller's token found in the request context.
func NewHTTPStore(client *httpx.Client, serviceToken string) *HTTPStore {
	return &HTTPStore{client: client, serviceToken: serviceToken}
}

var _ profile.Store = (*HTTPStore)(nil)

func (s *HTTPStore) bearer(ctx context.Context) http.Header {
	if s.serviceToken != "" {
		return httpx.BearerHeader(s.serviceToken)
	}
	return httpx.BearerHeader(kernel.BearerTokenFrom(ctx))
}

func (s *HTTPStore) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := s.client.Do(ctx, method, path, query, body, s.bearer(ctx))
	if err != nil {
		return profile.ErrStoreUnavailable(err).WithDetail("path", path)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := resp.DecodeJSON(out); err != nil {
		return profile.ErrRegistry.NewWithCause(profile.CodeUnexpectedStoreReply, err).
			WithDetail("status", resp.StatusCode)
	}
	return nil
}

// decodeError rebuilds the service's errx payload. Profile codes keep their
// identity; anything else is reported as an unexpected reply.
func decodeError(resp *httpx.Response) *errx.Error {
	var body errx.HTTPErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Code == "" {
		if resp.StatusCode >= http.StatusInternalServerError {
			return profile.ErrRegistry.New(profile.CodeStoreUnavailable).WithDetail("status", resp.StatusCode)
		}
		return profile.ErrRegistry.New(profile.CodeUnexpectedStoreReply).WithDetail("status", resp.StatusCode)
	}
	if body.StatusCode == 0 {
		body.StatusCode = resp.StatusCode
	}
	return errx.FromHTTPResponse(body, profile.ErrRegistry)
}

func recordPath(identityRef kernel.IdentityID) string {
	return profilesPath + "/" + url.PathEscape(identityRef.String())
}

func checkRef(rec *profile.ProfileRecord, want kernel.IdentityID) error {
	if rec.IdentityRef != want {
		return profile.ErrRegistry.New(profile.CodeIdentityRefMismatch).
			WithDetail("expected", want).
			WithDetail("got", rec.IdentityRef)
	}
	return nil
}

func (s *HTTPStore) Create(ctx context.Context, req profile.CreateRequest) (*profile.ProfileRecord, error) {
	if req.IdentityRef.IsEmpty() {
		return nil, profile.ErrInvalidRequest("identity_ref is required")
	}
	var rec profile.ProfileRecord
	if err := s.call(ctx, http.MethodPost, profilesPath, nil, req, &rec); err != nil {
		return nil, err
	}
	if err := checkRef(&rec, req.IdentityRef); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *HTTPStore) Get(ctx context.Context, identityRef kernel.IdentityID) (*profile.ProfileRecord, error) {
	var rec profile.ProfileRecord
	if err := s.call(ctx, http.MethodGet, recordPath(identityRef), nil, nil, &rec); err != nil {
		return nil, err
	}
	if err := checkRef(&rec, identityRef); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *HTTPStore) Update(ctx context.Context, identityRef kernel.IdentityID, patch profile.Patch) (*profile.ProfileRecord, error) {
	var rec profile.ProfileRecord
	if err := s.call(ctx, http.MethodPatch, recordPath(identityRef), nil, patch, &rec); err != nil {
		return nil, err
	}
	if err := checkRef(&rec, identityRef); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *HTTPStore) Delete(ctx context.Context, identityRef kernel.IdentityID) error {
	return s.call(ctx, http.MethodDelete, recordPath(identityRef), nil, nil, nil)
}

func (s *HTTPStore) FindByUsername(ctx context.Context, username string, principalType profile.PrincipalType) (*profile.ProfileRecord, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("type", principalType.String())

	var rec profile.ProfileRecord
	if err := s.call(ctx, http.MethodGet, profilesPath+"/lookup", q, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *HTTPStore) List(ctx context.Context, filter profile.Filter, opts kernel.PaginationOptions) (*kernel.Paginated[profile.ProfileRecord], error) {
	opts = opts.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("page_size", strconv.Itoa(opts.PageSize))
	if filter.Type != "" {
		q.Set("type", filter.Type.String())
	}
	if filter.Active != nil {
		q.Set("active", strconv.FormatBool(*filter.Active))
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}

	var page kernel.Paginated[profile.ProfileRecord]
	if err := s.call(ctx, http.MethodGet, profilesPath, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
