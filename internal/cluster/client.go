package cluster

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

	"clusterreport/internal/credential"
	"clusterreport/internal/platform/config"
	dErrors "clusterreport/pkg/domain-errors"
)

// BaseURL derives the cluster API base for a booking domain.
func BaseURL(domain string) string {
	return "https://cluster-api." + domain
}

// Invalidator is the slice of the credential store the client needs: it
// evicts the cached cluster credential whenever an authenticated call comes
// back 401/403.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Client talks to the cluster API: key-for-token exchange, paginated company
// listing, and per-company token issuance.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	invalidator Invalidator
	pageSize    int
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithInvalidator wires credential eviction on authorization failures.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Client) {
		c.invalidator = inv
	}
}

// WithPageSize overrides the companies page size (default 50).
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// New creates a cluster API client rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pageSize:   config.CompanyPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authRequest struct {
	Key string `json:"key"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type pageMetadata struct {
	PagesCount int `json:"pages_count"`
	ItemsCount int `json:"items_count"`
}

type companiesResponse struct {
	Data     *[]Company    `json:"data"`
	Metadata *pageMetadata `json:"metadata"`
}

// errorResponse is the error envelope the API uses across endpoints.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Authenticate exchanges an API key for a cluster token.
func (c *Client) Authenticate(ctx context.Context, apiKey, cluster string) (string, error) {
	body, err := json.Marshal(authRequest{Key: apiKey})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode auth request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create auth request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cluster", cluster)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAuth, "cluster auth request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAuth, "read auth response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeAuth, apiErrorMessage(raw, "failed to get cluster token"))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.Token == "" {
		return "", dErrors.New(dErrors.CodeAuth, "invalid response from cluster API")
	}
	return tr.Token, nil
}

// ListCompanies fetches every company in the cluster, page by page, in
// server-returned order. Any page failure aborts the whole listing; no
// partial list is returned.
func (c *Client) ListCompanies(ctx context.Context, cred *credential.Credential) ([]Company, error) {
	var all []Company
	page := 1
	for {
		companies, meta, err := c.companiesPage(ctx, cred, page)
		if err != nil {
			return nil, err
		}
		all = append(all, companies...)
		if meta == nil || page >= meta.PagesCount {
			return all, nil
		}
		page++
	}
}

func (c *Client) companiesPage(ctx context.Context, cred *credential.Credential, page int) ([]Company, *pageMetadata, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("on_page", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/companies?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "create companies request")
	}
	c.setAuthHeaders(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeAPI, "companies request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeAPI, "read companies response")
	}
	if resp.StatusCode != http.StatusOK {
		c.handleAuthFailure(ctx, resp.StatusCode)
		return nil, nil, statusError(resp.StatusCode, raw, "failed to load companies")
	}

	var cr companiesResponse
	if err := json.Unmarshal(raw, &cr); err != nil || cr.Data == nil {
		return nil, nil, dErrors.New(dErrors.CodeAPI, "invalid companies response")
	}
	return *cr.Data, cr.Metadata, nil
}

// CompanyToken exchanges the cluster credential for a token scoped to one
// company.
func (c *Client) CompanyToken(ctx context.Context, cred *credential.Credential, login string) (string, error) {
	u := fmt.Sprintf("%s/companies/%s/api-token", c.baseURL, url.PathEscape(login))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create company token request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAPI, "company token request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAPI, "read company token response")
	}
	if resp.StatusCode != http.StatusOK {
		c.handleAuthFailure(ctx, resp.StatusCode)
		return "", statusError(resp.StatusCode, raw, "failed to get company token")
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.Token == "" {
		return "", dErrors.New(dErrors.CodeAPI, "invalid token response")
	}
	return tr.Token, nil
}

func (c *Client) setAuthHeaders(req *http.Request, cred *credential.Credential) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cluster", cred.Cluster)
	req.Header.Set("X-Token", cred.Token)
}

// handleAuthFailure evicts the cached credential on 401/403 so the next run
// re-authenticates instead of retrying a dead token.
func (c *Client) handleAuthFailure(ctx context.Context, status int) {
	if c.invalidator == nil {
		return
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		_ = c.invalidator.Invalidate(ctx)
	}
}

func statusError(status int, body []byte, fallback string) error {
	code := dErrors.CodeAPI
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = dErrors.CodeAuth
	}
	return dErrors.New(code, apiErrorMessage(body, fallback))
}

// apiErrorMessage extracts the error or message field from an API error
// envelope, falling back to the given message.
func apiErrorMessage(body []byte, fallback string) string {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		if er.Error != "" {
			return er.Error
		}
		if er.Message != "" {
			return er.Message
		}
	}
	return fallback
}
