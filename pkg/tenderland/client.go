// Package tenderland is a client for the Tenderland procurement feed API.
//
// An export is created from a saved autosearch and fetched once it is
// ready; single tenders are looked up by registration number through the
// search endpoint. Every request carries the API key as a query parameter.
package tenderland

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tender-cli/internal/resilience"
)

const defaultBaseURL = "https://tenderland.ru/api/v1"

// ErrExportNotReady is returned by GetExport while the export is still
// being assembled.
var ErrExportNotReady = errors.New("tenderland: export not ready")

// Client talks to the Tenderland API.
type Client interface {
	CreateExport(ctx context.Context, autosearchID, batchSize, limit int) (*Export, error)
	GetExport(ctx context.Context, exportID int) (*TendersResponse, error)
	AwaitExport(ctx context.Context, exportID int) (*TendersResponse, error)
	Search(ctx context.Context, regNumber string) (*Tender, error)
}

// Export is the handle returned when an export task is created.
type Export struct {
	ID         int    `json:"Id" validate:"required"`
	Success    bool   `json:"Success"`
	TotalCount int    `json:"TotalCount"`
	CreateDate string `json:"CreateDate"`
}

// Customer is a purchasing organization of a lot.
type Customer struct {
	ShortName string `json:"lotCustomerShortName" validate:"required"`
}

// Tender is one tender as exported by Tenderland.
type Tender struct {
	RegNumber     string     `json:"regNumber" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	BeginPrice    float64    `json:"beginPrice"`
	PublishDate   string     `json:"publishDate"`
	EndDate       string     `json:"endDate"`
	Region        string     `json:"region"`
	TypeName      string     `json:"typeName"`
	LotCategories []string   `json:"lotCategories"`
	Files         string     `json:"files" validate:"required,url"`
	Module        string     `json:"module"`
	EtpLink       string     `json:"etpLink"`
	Customers     []Customer `json:"customers" validate:"dive"`
}

// Entry wraps a tender with its position in the export.
type Entry struct {
	OrdinalNumber int    `json:"ordinalNumber"`
	Tender        Tender `json:"tender"`
}

// TendersResponse is the body of export and search responses.
type TendersResponse struct {
	Items []Entry `json:"items" validate:"dive"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithPolling sets the export poll interval and the overall wait bound.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *httpClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	http         *http.Client
	limiter      *rate.Limiter
	validate     *validator.Validate
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewClient creates a Tenderland client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		http:         &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(2), 1),
		validate:     validator.New(),
		pollInterval: 5 * time.Second,
		pollTimeout:  5 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateExport(ctx context.Context, autosearchID, batchSize, limit int) (*Export, error) {
	params := url.Values{}
	params.Set("autosearchId", strconv.Itoa(autosearchID))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("batchSize", strconv.Itoa(batchSize))
	params.Set("format", "json")

	var out Export
	if err := c.get(ctx, "/Export/Create", params, &out); err != nil {
		return nil, eris.Wrapf(err, "tenderland: create export for autosearch %d", autosearchID)
	}
	if !out.Success {
		return nil, eris.Errorf("tenderland: export %d was not accepted", out.ID)
	}
	return &out, nil
}

func (c *httpClient) GetExport(ctx context.Context, exportID int) (*TendersResponse, error) {
	params := url.Values{}
	params.Set("exportId", strconv.Itoa(exportID))

	var out TendersResponse
	if err := c.get(ctx, "/Export/Get", params, &out); err != nil {
		return nil, eris.Wrapf(err, "tenderland: get export %d", exportID)
	}
	return &out, nil
}

// AwaitExport polls GetExport at a fixed interval while the export is not
// ready, up to the poll timeout.
func (c *httpClient) AwaitExport(ctx context.Context, exportID int) (*TendersResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	for {
		resp, err := c.GetExport(ctx, exportID)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrExportNotReady) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "tenderland: export %d not ready", exportID)
		case <-time.After(c.pollInterval):
		}
	}
}

// Search looks a tender up by registration number. It returns nil, nil when
// the feed has no such tender.
func (c *httpClient) Search(ctx context.Context, regNumber string) (*Tender, error) {
	params := url.Values{}
	params.Set("keys", regNumber)
	params.Set("exportViewId", "1")

	var out TendersResponse
	if err := c.get(ctx, "/Search/Get", params, &out); err != nil {
		return nil, eris.Wrapf(err, "tenderland: search %s", regNumber)
	}
	for _, e := range out.Items {
		if e.Tender.RegNumber == regNumber {
			return &e.Tender, nil
		}
	}
	if len(out.Items) > 0 {
		return &out.Items[0].Tender, nil
	}
	return nil, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		return ErrExportNotReady
	case resp.StatusCode != http.StatusOK:
		return resilience.HTTPStatusError("tenderland", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	if err := c.validate.Struct(out); err != nil {
		return eris.Wrap(err, "invalid response")
	}
	return nil
}
