package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/hashicorp/go-retryablehttp"
)

// Options configures a Client.
type Options struct {
	Name         string
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// HTTPClient is the underlying client, e.g. an oauth2 client that
	// injects an access token. A pooled client is used when nil.
	HTTPClient *http.Client

	// Header is sent with every request.
	Header http.Header

	Logger *logx.Logger
}

// Client sends JSON requests through a retrying transport. Only idempotent
// methods are retried after a response has been received.
type Client struct {
	baseURL string
	header  http.Header
	rc      *retryablehttp.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Body, v)
}

func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		rc.HTTPClient = &hc
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.CheckRetry = checkRetry
	// Hand the last response back instead of a generic "giving up" error so
	// callers can map the provider's own error body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logx.NewLeveledLogger(opts.Logger, logx.Fields{"remote": opts.Name})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		header:  opts.Header,
		rc:      rc,
	}
}

// Do sends body as JSON (nil sends no body) and reads the whole response.
// A non-nil error means no response was obtained.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, header http.Header) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx = context.WithValue(ctx, idempotentKey{}, isIdempotent(method))
	var reqBody interface{}
	if payload != nil {
		reqBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

type idempotentKey struct{}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// checkRetry follows the library default, except that a non-idempotent
// request that reached the server is only retried on 429 and 503.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if !retry || checkErr != nil {
		return retry, checkErr
	}
	if idempotent, _ := ctx.Value(idempotentKey{}).(bool); idempotent {
		return true, nil
	}
	if resp == nil {
		// A timed out request may have been applied remotely.
		var netErr net.Error
		return !(errors.As(err, &netErr) && netErr.Timeout()), nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable, nil
}

// BearerHeader builds an Authorization header for token.
func BearerHeader(token string) http.Header {
	if token == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
