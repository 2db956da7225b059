// Package enrich fans each extracted tender item out to web search, fetches
// and analyzes the candidate supplier pages and synthesizes a per-item
// product analysis. Every result is written to the item's slot in the tender
// record as soon as it is known.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/reasoning"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
)

// Searcher returns merged, filtered search hits. It never fails; an empty
// slice means nothing usable was found.
type Searcher interface {
	Search(ctx context.Context, query string) []model.SearchHit
}

// PageFetcher saves candidate pages for one run. *sitefetch.Fetcher
// satisfies it.
type PageFetcher interface {
	FetchAndSave(ctx context.Context, url, destName string) (string, error)
	Cleanup() error
}

// Options tunes the fan-out.
type Options struct {
	// MaxQueries caps the search queries kept per item.
	MaxQueries int
	// SiteConcurrency bounds concurrent page fetch+analysis across the run.
	SiteConcurrency int
	// MaxItems limits how many items are enriched. Zero means all.
	MaxItems int
	// KeepPages skips scratch directory removal.
	KeepPages bool
}

// Enricher runs the item enrichment sub-pipeline.
type Enricher struct {
	store      store.Store
	reasoning  reasoning.Gateway
	search     Searcher
	newFetcher func() PageFetcher
	opts       Options
}

// New creates an Enricher. newFetcher is called once per run so every run
// gets its own scratch directory.
func New(st store.Store, gw reasoning.Gateway, searcher Searcher, newFetcher func() PageFetcher, opts Options) *Enricher {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 5
	}
	if opts.SiteConcurrency <= 0 {
		opts.SiteConcurrency = 8
	}
	return &Enricher{
		store:      st,
		reasoning:  gw,
		search:     searcher,
		newFetcher: newFetcher,
		opts:       opts,
	}
}

// run carries the per-invocation state shared by all branches.
type run struct {
	key     string
	fetcher PageFetcher
	sites   *semaphore.Weighted
}

// EnrichItems enriches every item of the tender in parallel. Search, fetch
// and reasoning failures of a single item, query or site are logged and leave
// that branch's slot partially filled. Checkpoint writes that fail are
// collected from every branch and returned once all items have finished.
func (e *Enricher) EnrichItems(ctx context.Context, key string, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	rec, err := e.store.FindByKey(ctx, key)
	if err != nil {
		return eris.Wrap(err, "enrich: load record")
	}
	if rec == nil {
		return eris.Wrapf(resilience.ErrTenderNotFound, "enrich: %s", key)
	}

	slots, err := e.ensureSlots(ctx, key, items, rec.FindRequests)
	if err != nil {
		return err
	}

	r := e.newRun(key)
	defer e.finish(r)

	var (
		mu     sync.Mutex
		failed []error
	)
	g := new(errgroup.Group)
	for i, item := range items {
		if e.opts.MaxItems > 0 && i >= e.opts.MaxItems {
			zap.L().Info("enrich: item cap reached",
				zap.String("reg_number", key),
				zap.Int("max_items", e.opts.MaxItems),
				zap.Int("skipped", len(items)-i),
			)
			break
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := e.enrich(ctx, r, i, item, slots[i])
			var se *resilience.StoreWriteError
			if errors.As(err, &se) {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
				return nil
			}
			if err != nil {
				zap.L().Warn("enrich: item failed",
					zap.String("reg_number", key),
					zap.Int("item", i),
					zap.String("item_name", item.Name),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return eris.Wrapf(errors.Join(failed...), "enrich: %s: %d item(s) not saved", key, len(failed))
	}
	return nil
}

// EnrichItem enriches a single item, creating the tender's slots first when
// they are missing.
func (e *Enricher) EnrichItem(ctx context.Context, key string, i int, item model.Item) error {
	rec, err := e.store.FindByKey(ctx, key)
	if err != nil {
		return eris.Wrap(err, "enrich: load record")
	}
	if rec == nil {
		return eris.Wrapf(resilience.ErrTenderNotFound, "enrich: %s", key)
	}
	items := rec.Items()
	if i < 0 || i >= len(items) {
		return eris.Errorf("enrich: item %d out of range (%d items)", i, len(items))
	}
	items[i] = item

	slots, err := e.ensureSlots(ctx, key, items, rec.FindRequests)
	if err != nil {
		return err
	}

	r := e.newRun(key)
	defer e.finish(r)
	return e.enrich(ctx, r, i, item, slots[i])
}

func (e *Enricher) newRun(key string) *run {
	return &run{
		key:     key,
		fetcher: e.newFetcher(),
		sites:   semaphore.NewWeighted(int64(e.opts.SiteConcurrency)),
	}
}

func (e *Enricher) finish(r *run) {
	if e.opts.KeepPages {
		return
	}
	if err := r.fetcher.Cleanup(); err != nil {
		zap.L().Warn("enrich: scratch cleanup failed", zap.String("reg_number", r.key), zap.Error(err))
	}
}

// ensureSlots makes findRequests line up with items. A matching array is
// reused as is; otherwise one slot per item is written in a single update,
// keeping existing slots whose item name still matches.
func (e *Enricher) ensureSlots(ctx context.Context, key string, items []model.Item, existing []model.FindRequest) ([]model.FindRequest, error) {
	if len(existing) == len(items) {
		return existing, nil
	}
	slots := make([]model.FindRequest, len(items))
	for i, item := range items {
		if i < len(existing) && existing[i].ItemName == item.Name {
			slots[i] = existing[i]
			continue
		}
		slots[i] = model.NewFindRequest(item.Name)
	}
	if err := e.store.SetField(ctx, key, store.PathFindRequests, slots); err != nil {
		return nil, &resilience.StoreWriteError{Key: key, Path: store.PathFindRequests.String(), Err: err}
	}
	return slots, nil
}

func (e *Enricher) enrich(ctx context.Context, r *run, i int, item model.Item, slot model.FindRequest) error {
	log := zap.L().With(zap.String("reg_number", r.key), zap.Int("item", i))

	queries := slot.SearchQueries
	if len(queries) == 0 {
		queries = SplitQueries(e.reasoning.GenerateQueries(ctx, item.Describe()), e.opts.MaxQueries)
		if len(queries) == 0 {
			return eris.New("enrich: no search queries generated")
		}
		path := store.FindRequestPath(i, "findRequest")
		if err := e.store.SetField(ctx, r.key, path, queries); err != nil {
			return &resilience.StoreWriteError{Key: r.key, Path: path.String(), Err: err}
		}
	}
	log.Info("enrich: searching", zap.Strings("queries", queries))

	var (
		mu        sync.Mutex
		analyzed  []model.SiteResult
		writeErrs []error
	)
	g := new(errgroup.Group)
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results := e.fetchSites(ctx, r, e.search.Search(ctx, q))

			path := store.FindRequestPath(i, "parsedRequest")
			entry := model.ParsedRequest{RequestName: q, ResponseFromWebsites: results}
			err := e.store.UpsertArrayEntry(ctx, r.key, path, "requestName", q, entry)

			mu.Lock()
			if err != nil {
				log.Warn("enrich: save query results failed", zap.String("query", q), zap.Error(err))
				writeErrs = append(writeErrs, &resilience.StoreWriteError{Key: r.key, Path: path.String(), Err: err})
			}
			for _, s := range results {
				if strings.TrimSpace(s.Content) != "" {
					analyzed = append(analyzed, s)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	analysis := e.reasoning.SynthesizeProduct(ctx, RenderProductPrompt(item, analyzed))
	if analysis == "" {
		return errors.Join(append(writeErrs, eris.New("enrich: empty product analysis"))...)
	}
	path := store.FindRequestPath(i, "productAnalysis")
	if err := e.store.SetField(ctx, r.key, path, analysis); err != nil {
		writeErrs = append(writeErrs, &resilience.StoreWriteError{Key: r.key, Path: path.String(), Err: err})
	}
	if len(writeErrs) > 0 {
		return errors.Join(writeErrs...)
	}
	log.Info("enrich: item done", zap.Int("sites_analyzed", len(analyzed)))
	return nil
}

// fetchSites fetches and analyzes every hit. The returned slice is aligned
// with hits and every entry carries the hit's link, title and snippet; a
// failed or skipped site keeps empty content.
func (e *Enricher) fetchSites(ctx context.Context, r *run, hits []model.SearchHit) []model.SiteResult {
	results := make([]model.SiteResult, len(hits))
	g := new(errgroup.Group)
	for j, hit := range hits {
		results[j] = model.NewSiteResult(hit)
	}
	for j, hit := range hits {
		if err := r.sites.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer r.sites.Release(1)
			path, err := r.fetcher.FetchAndSave(ctx, hit.Link, "")
			if err != nil {
				zap.L().Debug("enrich: site fetch failed", zap.String("url", hit.Link), zap.Error(err))
				return nil
			}
			results[j].Content = e.reasoning.AnalyzePage(ctx, path, reasoning.ProductFactsInstruction)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// SplitQueries turns the model's newline-separated answer into at most limit
// distinct queries. List markers and wrapping quotes are stripped.
func SplitQueries(raw string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		q := listMarker.ReplaceAllString(line, "")
		q = strings.Trim(q, "\"'«»` \t\r")
		if q == "" {
			continue
		}
		norm := strings.ToLower(strings.Join(strings.Fields(q), " "))
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// RenderProductPrompt renders the item and the analyzed supplier pages as
// input for product synthesis.
func RenderProductPrompt(item model.Item, sites []model.SiteResult) string {
	var b strings.Builder
	b.WriteString("Товар из закупки:\n")
	b.WriteString(item.Describe())
	if q := item.Quantity.Value.String(); q != "" {
		fmt.Fprintf(&b, "\nКоличество: %s %s", q, item.Quantity.Unit)
	}
	if item.EstimatedPrice != nil && item.EstimatedPrice.String() != "" {
		fmt.Fprintf(&b, "\nОриентировочная цена: %s", item.EstimatedPrice.String())
	}
	if len(item.Requirements) > 0 {
		b.WriteString("\nТребования:")
		for _, req := range item.Requirements {
			b.WriteString("\n- " + req)
		}
	}

	b.WriteString("\n\nСведения с сайтов поставщиков:")
	if len(sites) == 0 {
		b.WriteString("\nнет данных")
	}
	for n, s := range sites {
		fmt.Fprintf(&b, "\n\n[%d] %s\nИсточник: %s\n%s", n+1, s.Title, s.Link, strings.TrimSpace(s.Content))
	}
	return b.String()
}
