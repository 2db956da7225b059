// Package scrape fetches candidate product pages, falling back from a plain
// HTTP fetch to reader APIs when a site blocks bots.
package scrape

import (
	"context"

	"github.com/sells-group/tender-cli/internal/model"
)

// Result holds a scraped page with its source.
type Result struct {
	Page   model.CrawledPage
	Source string // e.g. "local_http", "jina", "firecrawl"
	// PDF holds the raw body when the URL served a PDF instead of a page.
	PDF []byte
}

// IsPDF reports whether the result is a PDF document.
func (r *Result) IsPDF() bool { return len(r.PDF) > 0 }

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
