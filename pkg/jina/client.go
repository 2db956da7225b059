// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/resilience"
)

// Client defines the Jina AI operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns the page as markdown.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Search performs a web search via Jina AI Search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the parsed Jina Reader response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed Jina Search response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	country  string
	language string
	num      int
}

// WithRegion sets the country (gl) and interface language (hl) of the search.
func WithRegion(country, language string) SearchOption {
	return func(o *searchOpts) {
		o.country = country
		o.language = language
	}
}

// WithNum caps the number of results.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) {
		o.num = n
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom reader base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchBaseURL sets a custom search base URL.
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry retries transient failures (429, 5xx, network timeouts). The
// default is a single attempt.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	retry         resilience.RetryConfig
}

// NewClient creates a new Jina AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryConfig{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs req, mapping non-2xx statuses to resilience.HTTPStatusError so
// the retry policy can tell transient failures apart. A 422 is returned as a
// status without error: Jina uses it for "no results".
func (c *httpClient) get(ctx context.Context, rawURL string, header http.Header) ([]byte, int, error) {
	type reply struct {
		body   []byte
		status int
	}
	r, err := resilience.DoVal(ctx, c.retry, "jina", func(ctx context.Context) (reply, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return reply{}, eris.Wrap(err, "jina: create request")
		}
		req.Header = header.Clone()
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return reply{}, eris.Wrap(err, "jina: request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return reply{}, eris.Wrap(err, "jina: read response body")
		}
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return reply{body: body, status: resp.StatusCode}, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return reply{}, resilience.HTTPStatusError("jina", resp.StatusCode, string(body))
		}
		return reply{body: body, status: resp.StatusCode}, nil
	})
	return r.body, r.status, err
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Return-Format", "markdown")
	h.Set("X-Locale", "ru-RU")

	body, status, err := c.get(ctx, c.baseURL+"/"+targetURL, h)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity {
		return nil, eris.Errorf("jina: unreadable page %s", targetURL)
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("q", query)
	if so.country != "" {
		params.Set("gl", so.country)
	}
	if so.language != "" {
		params.Set("hl", so.language)
	}
	if so.num > 0 {
		params.Set("num", strconv.Itoa(so.num))
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Respond-With", "no-content")

	body, status, err := c.get(ctx, c.searchBaseURL+"/?"+params.Encode(), h)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search")
	}
	if status == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: status}, nil
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}
	return &result, nil
}
