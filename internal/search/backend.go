// Package search fans a query out to several web search backends and merges
// the candidate product pages they return.
package search

import (
	"context"
	"strings"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/pkg/google"
	"github.com/sells-group/tender-cli/pkg/jina"
	"github.com/sells-group/tender-cli/pkg/yandex"
)

// Backend is one web search provider.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.SearchHit, error)
}

// GoogleBackend searches with Google Custom Search.
type GoogleBackend struct {
	client google.Client
}

// NewGoogleBackend wraps a Custom Search client.
func NewGoogleBackend(client google.Client) *GoogleBackend {
	return &GoogleBackend{client: client}
}

// Name implements Backend.
func (b *GoogleBackend) Name() string { return "google" }

// Search implements Backend.
func (b *GoogleBackend) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	resp, err := b.client.Search(ctx, query, google.MaxResults)
	if err != nil {
		return nil, err
	}
	hits := make([]model.SearchHit, 0, len(resp.Items))
	for _, it := range resp.Items {
		hits = append(hits, model.SearchHit{Link: it.Link, Title: it.Title, Snippet: it.Snippet, Source: b.Name()})
	}
	return hits, nil
}

// YandexBackend searches with the Yandex Search API.
type YandexBackend struct {
	client yandex.Client
}

// NewYandexBackend wraps a Yandex client.
func NewYandexBackend(client yandex.Client) *YandexBackend {
	return &YandexBackend{client: client}
}

// Name implements Backend.
func (b *YandexBackend) Name() string { return "yandex" }

// Search implements Backend.
func (b *YandexBackend) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	results, err := b.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, model.SearchHit{Link: r.URL, Title: r.Title, Snippet: r.Snippet, Source: b.Name()})
	}
	return hits, nil
}

// JinaBackend searches with Jina AI Search, restricted to the Russian region.
type JinaBackend struct {
	client jina.Client
}

// NewJinaBackend wraps a Jina client.
func NewJinaBackend(client jina.Client) *JinaBackend {
	return &JinaBackend{client: client}
}

// Name implements Backend.
func (b *JinaBackend) Name() string { return "jina" }

// Search implements Backend.
func (b *JinaBackend) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	resp, err := b.client.Search(ctx, query, jina.WithRegion("RU", "ru"), jina.WithNum(10))
	if err != nil {
		return nil, err
	}
	hits := make([]model.SearchHit, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = firstLine(r.Content)
		}
		hits = append(hits, model.SearchHit{Link: r.URL, Title: r.Title, Snippet: snippet, Source: b.Name()})
	}
	return hits, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 300 {
		s = string(r[:300])
	}
	return s
}
