package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/resilience"
)

// Options tunes the Gateway.
type Options struct {
	// Timeout bounds each backend call.
	Timeout time.Duration
	// RateLimit is the per-backend request rate (requests per second).
	RateLimit float64
	Breaker   resilience.CircuitBreakerConfig
}

// Gateway queries every backend concurrently and merges their hits.
type Gateway struct {
	backends []Backend
	filter   *Filter
	cache    Cache
	breakers *resilience.Breakers
	limiters map[string]*rate.Limiter
	timeout  time.Duration
}

// NewGateway creates a Gateway. A nil filter passes everything; a nil cache
// disables caching.
func NewGateway(backends []Backend, filter *Filter, cache Cache, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Breaker.FailureThreshold == 0 {
		opts.Breaker = resilience.DefaultCircuitBreakerConfig()
	}
	if opts.Breaker.ShouldTrip == nil {
		opts.Breaker.ShouldTrip = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	if filter == nil {
		filter = NewFilter(Rules{})
	}

	limiters := make(map[string]*rate.Limiter, len(backends))
	for _, b := range backends {
		limiters[b.Name()] = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Gateway{
		backends: backends,
		filter:   filter,
		cache:    cache,
		breakers: resilience.NewBreakers(opts.Breaker),
		limiters: limiters,
		timeout:  opts.Timeout,
	}
}

// Backends returns the configured backend names.
func (g *Gateway) Backends() []string {
	names := make([]string, len(g.backends))
	for i, b := range g.backends {
		names[i] = b.Name()
	}
	return names
}

// Search returns filtered hits for query, merged in backend order with the
// first occurrence of a link winning. It never fails: a backend error only
// removes that backend's hits.
func (g *Gateway) Search(ctx context.Context, query string) []model.SearchHit {
	if ctx.Err() != nil {
		return nil
	}
	if g.cache != nil {
		if hits, ok := g.cache.Get(ctx, query); ok {
			return hits
		}
	}

	perBackend := make([][]model.SearchHit, len(g.backends))
	ok := make([]bool, len(g.backends))
	eg, gctx := errgroup.WithContext(ctx)
	for i, b := range g.backends {
		eg.Go(func() error {
			hits, err := g.query(gctx, b, query)
			if err != nil {
				zap.L().Warn("search: backend failed",
					zap.String("backend", b.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
				return nil
			}
			perBackend[i] = hits
			ok[i] = true
			return nil
		})
	}
	_ = eg.Wait()

	merged := g.filter.Apply(Merge(perBackend...))

	anyOK := false
	for _, v := range ok {
		anyOK = anyOK || v
	}
	if g.cache != nil && anyOK && ctx.Err() == nil {
		g.cache.Set(ctx, query, merged)
	}
	return merged
}

func (g *Gateway) query(ctx context.Context, b Backend, query string) ([]model.SearchHit, error) {
	name := b.Name()
	started := time.Now()

	cb := g.breakers.Get(name)
	hits, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) ([]model.SearchHit, error) {
		if err := g.limiters[name].Wait(ctx); err != nil {
			return nil, err
		}
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return b.Search(cctx, query)
	})
	if err != nil {
		gerr := resilience.NewGatewayError("search", name, err)
		outcome := metrics.OutcomeError
		if gerr.Timeout {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveGateway("search", name, outcome, started)
		return nil, gerr
	}

	outcome := metrics.OutcomeOK
	if len(hits) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveGateway("search", name, outcome, started)
	metrics.SearchHits.WithLabelValues(name).Add(float64(len(hits)))
	return hits, nil
}

// Merge concatenates hit lists, dropping hits without a link and repeats of
// a link already seen.
func Merge(lists ...[]model.SearchHit) []model.SearchHit {
	seen := make(map[string]bool)
	var out []model.SearchHit
	for _, l := range lists {
		for _, h := range l {
			if h.Link == "" || seen[h.Link] {
				continue
			}
			seen[h.Link] = true
			out = append(out, h)
		}
	}
	return out
}
