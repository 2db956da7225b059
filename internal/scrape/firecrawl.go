package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/cost"
	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client  firecrawl.Client
	pricing *cost.Calculator
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
// pricing may be nil.
func NewFirecrawlAdapter(client firecrawl.Client, pricing *cost.Calculator) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client, pricing: pricing}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true: Firecrawl can attempt any URL as a fallback.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL through a Russian exit node.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Location:        &firecrawl.Location{Country: "RU", Languages: []string{"ru"}},
	})
	if err != nil {
		return nil, err
	}
	metrics.SpendUSD.WithLabelValues("firecrawl", "scrape").Add(f.pricing.FirecrawlScrape())
	if !resp.Success || resp.Data.Markdown == "" {
		return nil, eris.New("firecrawl: scrape not successful")
	}
	return &Result{
		Page: model.CrawledPage{
			URL:        targetURL,
			Title:      resp.Data.Metadata.Title,
			Markdown:   resp.Data.Markdown,
			StatusCode: resp.Data.Metadata.StatusCode,
		},
		Source: f.Name(),
	}, nil
}
