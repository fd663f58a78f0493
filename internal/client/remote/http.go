package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vmartynov/offsync/internal/client/models"
	"github.com/vmartynov/offsync/internal/common"
)

// TokenSource supplies the opaque credential attached to every request. The
// auth collaborator owns the token lifecycle; this package never refreshes.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClient implements Client against the JSON REST surface of the reference
// server (and anything wire-compatible with it).
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	perPage int
}

// NewHTTPClient builds a client for baseURL. A nil httpClient falls back to a
// client with a conservative request timeout.
func NewHTTPClient(baseURL string, token TokenSource, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, http: httpClient, token: token, perPage: 100}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, NewError(KindAuthenticationFailed, err)
		}
		if token != "" {
			req.Header.Set(common.AuthHeaderName, "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewError(KindNetworkUnavailable, err)
	}
	return resp, nil
}

// classify maps an HTTP status to the error taxonomy. 2xx returns nil.
func classify(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return NewError(KindAuthenticationFailed, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusForbidden:
		return NewError(KindPermissionDenied, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusNotFound:
		return NewError(KindNotFound, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusPreconditionFailed:
		var current Upstream
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			return NewError(KindTransientServerError, fmt.Errorf("unreadable 412 body: %w", err))
		}
		return &PreconditionError{Current: current}
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(KindRateLimited, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return NewError(KindValidationRejected, fmt.Errorf("status %s", resp.Status))
	default:
		return NewError(KindTransientServerError, fmt.Errorf("status %s", resp.Status))
	}
}

func decodeUpstream(resp *http.Response) (*Upstream, error) {
	var u Upstream
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &u, nil
}

func (c *HTTPClient) Create(ctx context.Context, kind models.Kind, clientKey string, fields models.Fields) (*Upstream, error) {
	headers := map[string]string{common.IdempotencyKeyHeaderName: clientKey}
	resp, err := c.do(ctx, http.MethodPost, "/api/"+string(kind), nil, headers, fields)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return nil, err
	}
	return decodeUpstream(resp)
}

func (c *HTTPClient) Update(ctx context.Context, kind models.Kind, serverID string, changed models.Fields, precondition time.Time) (*Upstream, error) {
	headers := map[string]string{}
	if !precondition.IsZero() {
		headers[common.PreconditionHeaderName] = precondition.UTC().Format(time.RFC3339Nano)
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/"+string(kind)+"/"+serverID, nil, headers, changed)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return nil, err
	}
	return decodeUpstream(resp)
}

func (c *HTTPClient) Delete(ctx context.Context, kind models.Kind, serverID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/"+string(kind)+"/"+serverID, nil, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = classify(resp)
	// Deleting an already-absent record is idempotent success.
	if KindOf(err) == KindNotFound {
		return nil
	}
	return err
}

type listPage struct {
	Items    []Upstream `json:"items"`
	NextPage int        `json:"next_page"`
}

type httpPager struct {
	c            *HTTPClient
	kind         models.Kind
	updatedSince *time.Time
	page         int
	done         bool
}

func (p *httpPager) Next(ctx context.Context) ([]Upstream, bool, error) {
	if p.done {
		return nil, true, nil
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(p.page))
	query.Set("per_page", strconv.Itoa(p.c.perPage))
	if p.updatedSince != nil {
		query.Set("updated_since", p.updatedSince.UTC().Format(time.RFC3339Nano))
	}

	resp, err := p.c.do(ctx, http.MethodGet, "/api/"+string(p.kind), query, nil, nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return nil, false, err
	}

	var page listPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("failed to decode list page: %w", err)
	}

	if page.NextPage == 0 {
		p.done = true
	} else {
		p.page = page.NextPage
	}
	return page.Items, false, nil
}

func (c *HTTPClient) List(ctx context.Context, kind models.Kind, updatedSince *time.Time) Pager {
	return &httpPager{c: c, kind: kind, updatedSince: updatedSince, page: 1}
}
