package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/model"
)

type stubScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    int
}

func (s *stubScraper) Name() string           { return s.name }
func (s *stubScraper) Supports(_ string) bool { return s.supports }
func (s *stubScraper) Scrape(_ context.Context, _ string) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func page(source string) *Result {
	return &Result{
		Page:   model.CrawledPage{URL: "https://shop.ru/item", Title: "Кресло", HTML: "<p>x</p>"},
		Source: source,
	}
}

func TestChain_FirstSuccess(t *testing.T) {
	s1 := &stubScraper{name: "local_http", supports: true, result: page("local_http")}
	s2 := &stubScraper{name: "jina", supports: true}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://shop.ru/item")

	require.NoError(t, err)
	assert.Equal(t, "local_http", result.Source)
	assert.Equal(t, 0, s2.calls)
}

func TestChain_FallbackOnError(t *testing.T) {
	s1 := &stubScraper{name: "local_http", supports: true, err: errors.New("blocked (ddos_guard)")}
	s2 := &stubScraper{name: "jina", supports: true, result: page("jina")}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://shop.ru/item")

	require.NoError(t, err)
	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, 1, s1.calls)
}

func TestChain_AllFail(t *testing.T) {
	s1 := &stubScraper{name: "local_http", supports: true, err: errors.New("status 503")}
	s2 := &stubScraper{name: "firecrawl", supports: true, err: errors.New("quota")}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://shop.ru/item")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "all scrapers failed")
	assert.Contains(t, err.Error(), "quota")
}

func TestChain_ExcludedURL(t *testing.T) {
	s1 := &stubScraper{name: "local_http", supports: true, result: page("local_http")}

	_, err := NewChain(nil, s1).Scrape(context.Background(), "https://shop.ru/cart/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")
	assert.Equal(t, 0, s1.calls)
}

func TestChain_SkipsUnsupported(t *testing.T) {
	s1 := &stubScraper{name: "jina", supports: false, result: page("jina")}
	s2 := &stubScraper{name: "firecrawl", supports: true, result: page("firecrawl")}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://shop.ru/item")

	require.NoError(t, err)
	assert.Equal(t, "firecrawl", result.Source)
	assert.Equal(t, 0, s1.calls)
}

func TestChain_NoSuitableScraper(t *testing.T) {
	s1 := &stubScraper{name: "local_http", supports: false}

	_, err := NewChain(nil, s1).Scrape(context.Background(), "https://shop.ru/item")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}

func TestChain_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s1 := &stubScraper{name: "local_http", supports: true, result: page("local_http")}

	_, err := NewChain(nil, s1).Scrape(ctx, "https://shop.ru/item")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s1.calls)
}

func TestChain_Names(t *testing.T) {
	c := NewChain(nil, &stubScraper{name: "local_http"}, &stubScraper{name: "jina"})
	assert.Equal(t, []string{"local_http", "jina"}, c.Names())
}
