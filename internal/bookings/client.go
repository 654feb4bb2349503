package bookings

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

	"clusterreport/internal/platform/config"
	"clusterreport/internal/sentinel"
	dErrors "clusterreport/pkg/domain-errors"
)

// Record is one booking as returned by the API: an arbitrarily shaped,
// possibly deeply nested mapping. No fixed schema is assumed.
type Record map[string]any

// UserBaseURL derives the user API base for a booking domain.
func UserBaseURL(domain string) string {
	return "https://user-api-v2." + domain
}

// Invalidator evicts the cached cluster credential; a 401/403 on a company
// call means the whole auth chain is stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Client talks to the per-company user API: direct booking listing and the
// asynchronous detailed-report job endpoints.
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

// WithPageSize overrides the bookings page size (default 100).
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// NewClient creates a user API client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pageSize:   config.BookingPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pageMetadata struct {
	PagesCount int `json:"pages_count"`
	ItemsCount int `json:"items_count"`
}

type bookingsResponse struct {
	Data     *[]Record     `json:"data"`
	Metadata *pageMetadata `json:"metadata"`
}

type createReportRequest struct {
	Filter         Filter `json:"filter"`
	OrderField     string `json:"order_field"`
	OrderDirection string `json:"order_direction"`
}

// createReportResponse tolerates both numeric and string job ids.
type createReportResponse struct {
	ID any `json:"id"`
}

func (r createReportResponse) id() string {
	switch v := r.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ListBookings retrieves every booking matching the filter by direct
// pagination, returning the records in server order plus the server's
// items_count.
func (c *Client) ListBookings(ctx context.Context, token, login string, f Filter) ([]Record, int, error) {
	var all []Record
	total := 0
	page := 1
	for {
		records, meta, err := c.bookingsPage(ctx, token, login, f, page)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, records...)
		if meta != nil {
			total = meta.ItemsCount
		} else {
			total = len(all)
		}
		if meta == nil || page >= meta.PagesCount {
			return all, total, nil
		}
		page++
	}
}

func (c *Client) bookingsPage(ctx context.Context, token, login string, f Filter, page int) ([]Record, *pageMetadata, error) {
	q := url.Values{}
	f.query(q)
	q.Set("page", strconv.Itoa(page))
	q.Set("on_page", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/bookings?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "create bookings request")
	}
	c.setAuthHeaders(req, token, login)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeAPI, "bookings request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeAPI, "read bookings response")
	}
	if resp.StatusCode != http.StatusOK {
		c.handleAuthFailure(ctx, resp.StatusCode)
		return nil, nil, dErrors.New(dErrors.CodeAPI, apiErrorMessage(raw, "failed to get bookings"))
	}

	var br bookingsResponse
	if err := json.Unmarshal(raw, &br); err != nil || br.Data == nil {
		return nil, nil, dErrors.New(dErrors.CodeAPI, "invalid bookings response")
	}
	return *br.Data, br.Metadata, nil
}

// CreateDetailedReport submits an asynchronous report job sorted by record
// creation time ascending and returns the job id to poll.
func (c *Client) CreateDetailedReport(ctx context.Context, token, login string, f Filter) (string, error) {
	body, err := json.Marshal(createReportRequest{
		Filter:         f,
		OrderField:     "record_date",
		OrderDirection: "asc",
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode report request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/detailed-report", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create report request")
	}
	c.setAuthHeaders(req, token, login)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAPI, "report request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAPI, "read report response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.handleAuthFailure(ctx, resp.StatusCode)
		return "", dErrors.New(dErrors.CodeAPI, apiErrorMessage(raw, "failed to create report"))
	}

	var cr createReportResponse
	if err := json.Unmarshal(raw, &cr); err != nil || cr.id() == "" {
		return "", dErrors.New(dErrors.CodeAPI, "invalid report response")
	}
	return cr.id(), nil
}

// DetailedReport performs one poll of a report job. A ready response is
// either a bare array of records or an object with a data array. HTTP 404
// and an explicit {code:404} body both mean the job is still processing and
// map to sentinel.ErrStillProcessing; any other failure is terminal.
func (c *Client) DetailedReport(ctx context.Context, token, login, jobID string) ([]Record, error) {
	u := fmt.Sprintf("%s/admin/detailed-report/%s", c.baseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create report poll request")
	}
	c.setAuthHeaders(req, token, login)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAPI, "report poll failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAPI, "read report poll response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("report job %s: %w", jobID, sentinel.ErrStillProcessing)
	}
	if resp.StatusCode != http.StatusOK {
		c.handleAuthFailure(ctx, resp.StatusCode)
		return nil, dErrors.New(dErrors.CodeAPI, apiErrorMessage(raw, "report poll failed"))
	}

	// Ready responses come as a bare array.
	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	// Or as an envelope, which doubles as the still-processing marker.
	var envelope struct {
		Data *[]Record `json:"data"`
		Code int       `json:"code"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, dErrors.New(dErrors.CodeAPI, "invalid report poll response")
	}
	if envelope.Code == http.StatusNotFound {
		return nil, fmt.Errorf("report job %s: %w", jobID, sentinel.ErrStillProcessing)
	}
	if envelope.Data == nil {
		return nil, dErrors.New(dErrors.CodeAPI, "invalid report poll response")
	}
	return *envelope.Data, nil
}

func (c *Client) setAuthHeaders(req *http.Request, token, login string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", token)
	req.Header.Set("X-Company-Login", login)
}

func (c *Client) handleAuthFailure(ctx context.Context, status int) {
	if c.invalidator == nil {
		return
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		_ = c.invalidator.Invalidate(ctx)
	}
}

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
