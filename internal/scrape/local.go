package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/model"
)

// BrowserUserAgent is sent by the local scraper; many shops refuse bots.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	maxPageBytes = 8 << 20
	minTextLen   = 50
)

// LocalScraper fetches pages directly over HTTP, detects anti-bot blocks and
// returns cleaned HTML. PDFs are passed through untouched.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// NewLocalScraper creates a LocalScraper with the given per-request timeout
// and User-Agent. Zero values select 5s and BrowserUserAgent.
func NewLocalScraper(timeout time.Duration, userAgent string) *LocalScraper {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if userAgent == "" {
		userAgent = BrowserUserAgent
	}
	return &LocalScraper{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConnsPerHost: 4,
			},
		},
	}
}

func (l *LocalScraper) Name() string { return "local_http" }

// Supports accepts http and https URLs.
func (l *LocalScraper) Supports(u string) bool {
	u = strings.ToLower(u)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// Scrape fetches a URL, detects blocks and cleans the markup.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/pdf") || bytes.HasPrefix(body, []byte("%PDF")) {
		return &Result{
			Page:   model.CrawledPage{URL: targetURL, StatusCode: resp.StatusCode},
			Source: l.Name(),
			PDF:    body,
		}, nil
	}

	cleaned, title, textLen, err := cleanHTML(toUTF8(body, ct))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	if textLen < minTextLen {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{
		Page: model.CrawledPage{
			URL:        targetURL,
			Title:      title,
			HTML:       cleaned,
			StatusCode: resp.StatusCode,
		},
		Source: l.Name(),
	}, nil
}
