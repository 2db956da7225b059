// Package yandex is a client for the asynchronous Yandex Cloud Search API.
// A query starts an operation; the operation is polled until done and its
// base64 payload holds the rendered results page.
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/resilience"
)

const (
	defaultSearchURL    = "https://searchapi.api.cloud.yandex.net/v2/web/searchAsync"
	defaultOperationURL = "https://operation.api.cloud.yandex.net/operations"
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 YaBrowser/25.2.0.0 Safari/537.36"
)

// Client runs web searches.
type Client interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is one organic search result.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURLs overrides the search and operation endpoints.
func WithBaseURLs(searchURL, operationURL string) Option {
	return func(c *httpClient) {
		c.searchURL = searchURL
		c.operationURL = operationURL
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPolling sets the operation poll interval and the overall wait bound.
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

// WithGroupsOnPage sets how many result groups a page holds.
func WithGroupsOnPage(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.groupsOnPage = n
		}
	}
}

type httpClient struct {
	apiKey       string
	folderID     string
	searchURL    string
	operationURL string
	groupsOnPage int
	pollInterval time.Duration
	pollTimeout  time.Duration
	http         *http.Client
}

// NewClient creates a Yandex Search API client authenticated with an API key.
func NewClient(apiKey, folderID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		folderID:     folderID,
		searchURL:    defaultSearchURL,
		operationURL: defaultOperationURL,
		groupsOnPage: 10,
		pollInterval: time.Second,
		pollTimeout:  30 * time.Second,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Query          searchQuery `json:"query"`
	GroupSpec      groupSpec   `json:"groupSpec"`
	FolderID       string      `json:"folderId"`
	ResponseFormat string      `json:"responseFormat"`
	UserAgent      string      `json:"userAgent"`
}

type searchQuery struct {
	SearchType string `json:"searchType"`
	QueryText  string `json:"queryText"`
}

type groupSpec struct {
	GroupsOnPage string `json:"groupsOnPage"`
}

// operation is a long-running Yandex Cloud operation.
type operation struct {
	ID       string `json:"id"`
	Done     bool   `json:"done"`
	Response *struct {
		RawData string `json:"rawData"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	op, err := c.start(ctx, query)
	if err != nil {
		return nil, err
	}
	op, err = c.wait(ctx, op)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(op.Response.RawData)
	if err != nil {
		return nil, eris.Wrap(err, "yandex: decode raw data")
	}
	results, err := ParseHTML(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	zap.L().Debug("yandex: search done", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func (c *httpClient) start(ctx context.Context, query string) (*operation, error) {
	body, err := json.Marshal(searchRequest{
		Query:          searchQuery{SearchType: "SEARCH_TYPE_RU", QueryText: query},
		GroupSpec:      groupSpec{GroupsOnPage: strconv.Itoa(c.groupsOnPage)},
		FolderID:       c.folderID,
		ResponseFormat: "FORMAT_HTML",
		UserAgent:      defaultUserAgent,
	})
	if err != nil {
		return nil, eris.Wrap(err, "yandex: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "yandex: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var op operation
	if err := c.do(req, &op); err != nil {
		return nil, eris.Wrap(err, "yandex: start search")
	}
	if op.ID == "" {
		return nil, eris.New("yandex: start search: empty operation id")
	}
	return &op, nil
}

// wait polls the operation at a fixed interval until it is done or the poll
// timeout elapses.
func (c *httpClient) wait(ctx context.Context, op *operation) (*operation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "yandex: operation %s not done", op.ID)
		case <-time.After(c.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.operationURL+"/"+op.ID, nil)
		if err != nil {
			return nil, eris.Wrap(err, "yandex: create poll request")
		}
		var next operation
		if err := c.do(req, &next); err != nil {
			return nil, eris.Wrapf(err, "yandex: poll operation %s", op.ID)
		}
		if next.ID == "" {
			next.ID = op.ID
		}
		op = &next
	}

	if op.Error != nil {
		return nil, eris.Errorf("yandex: operation %s failed: %d %s", op.ID, op.Error.Code, op.Error.Message)
	}
	if op.Response == nil || op.Response.RawData == "" {
		return nil, eris.Errorf("yandex: operation %s has no response", op.ID)
	}
	return op, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.HTTPStatusError("yandex", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
