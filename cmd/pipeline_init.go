package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/convert"
	"github.com/sells-group/tender-cli/internal/cost"
	"github.com/sells-group/tender-cli/internal/discovery"
	"github.com/sells-group/tender-cli/internal/enrich"
	"github.com/sells-group/tender-cli/internal/fetcher"
	"github.com/sells-group/tender-cli/internal/pipeline"
	"github.com/sells-group/tender-cli/internal/publish"
	"github.com/sells-group/tender-cli/internal/reasoning"
	"github.com/sells-group/tender-cli/internal/scrape"
	"github.com/sells-group/tender-cli/internal/search"
	"github.com/sells-group/tender-cli/internal/sitefetch"
	"github.com/sells-group/tender-cli/internal/store"
	anthropicpkg "github.com/sells-group/tender-cli/pkg/anthropic"
	"github.com/sells-group/tender-cli/pkg/firecrawl"
	"github.com/sells-group/tender-cli/pkg/google"
	"github.com/sells-group/tender-cli/pkg/jina"
	"github.com/sells-group/tender-cli/pkg/notion"
	"github.com/sells-group/tender-cli/pkg/tenderland"
	"github.com/sells-group/tender-cli/pkg/yandex"
)

// pipelineEnv holds the store, clients and the pipeline shared by the
// analyze/discover/serve commands.
type pipelineEnv struct {
	Store     store.Store
	Acquirer  *acquire.Acquirer
	Pipeline  *pipeline.Pipeline
	Syncer    *discovery.Syncer // nil without a Tenderland key
	Publisher *publish.Multi

	redis *redis.Client
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.redis != nil {
		_ = pe.redis.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and wires every
// client into the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st, Acquirer: newAcquirer()}

	pricing := cost.NewCalculator(cost.DefaultRates())
	gw, err := newReasoning(pricing)
	if err != nil {
		env.Close()
		return nil, err
	}

	searcher, rdb, err := newSearchGateway(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.redis = rdb

	chain := newScrapeChain(pricing)
	enricher := enrich.New(st, gw, searcher, func() enrich.PageFetcher {
		return sitefetch.New(chain, cfg.Pipeline.WorkDir)
	}, enrich.Options{
		MaxQueries:      cfg.Search.MaxQueries,
		SiteConcurrency: cfg.Search.SiteConcurrency,
		KeepPages:       cfg.Pipeline.KeepFiles,
	})

	env.Publisher, err = newPublisher()
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Pipeline = pipeline.New(st, env.Acquirer, gw, enricher, env.Publisher, pipeline.Options{
		KeepFiles: cfg.Pipeline.KeepFiles,
	})
	env.Syncer = newSyncer(st)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("search_backends", cfg.Search.Backends),
		zap.Strings("scrapers", chain.Names()),
		zap.Strings("publishers", env.Publisher.Targets()),
		zap.Bool("discovery", env.Syncer != nil),
	)
	return env, nil
}

func newAcquirer() *acquire.Acquirer {
	timeout := time.Duration(cfg.Pipeline.DownloadTimeoutSecs) * time.Second
	f := fetcher.NewRouter(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:   cfg.Pipeline.UserAgent,
			Timeout:     timeout,
			MaxAttempts: 1,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
	)
	conv := convert.NewRouter(convert.Options{
		AntiwordPath: cfg.Pipeline.AntiwordPath,
		SofficePath:  cfg.Pipeline.SofficePath,
	})
	return acquire.New(f, conv, acquire.Options{
		WorkDir:            cfg.Pipeline.WorkDir,
		ConvertConcurrency: cfg.Pipeline.ConvertConcurrency,
		MaxNesting:         cfg.Pipeline.MaxNesting,
		DownloadTimeout:    timeout,
	})
}

func newReasoning(pricing *cost.Calculator) (*reasoning.Claude, error) {
	prompts := reasoning.DefaultPrompts()
	if cfg.Anthropic.PromptsFile != "" {
		p, err := reasoning.LoadPrompts(cfg.Anthropic.PromptsFile)
		if err != nil {
			return nil, eris.Wrap(err, "load prompts")
		}
		prompts = p
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return reasoning.NewClaude(client, reasoning.Config{
		Model:          cfg.Anthropic.Model,
		MaxTokens:      cfg.Anthropic.MaxTokens,
		Timeout:        time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
		BatchThreshold: cfg.Anthropic.BatchThreshold,
		Pricing:        pricing,
	}, prompts), nil
}

// newSearchGateway builds the configured backends behind the marketplace
// filter and the result cache. The returned Redis client is nil when the
// in-process cache is used.
func newSearchGateway(ctx context.Context) (*search.Gateway, *redis.Client, error) {
	var backends []search.Backend
	for _, name := range cfg.Search.Backends {
		switch name {
		case "google":
			backends = append(backends, search.NewGoogleBackend(
				google.NewClient(cfg.Google.Key, cfg.Google.CX, google.WithBaseURL(cfg.Google.BaseURL))))
		case "yandex":
			backends = append(backends, search.NewYandexBackend(
				yandex.NewClient(cfg.Yandex.Key, cfg.Yandex.FolderID,
					yandex.WithGroupsOnPage(cfg.Yandex.GroupsOnPage),
					yandex.WithPolling(
						time.Duration(cfg.Yandex.PollIntervalSecs)*time.Second,
						time.Duration(cfg.Yandex.PollTimeoutSecs)*time.Second,
					))))
		case "jina":
			backends = append(backends, search.NewJinaBackend(newJinaClient()))
		default:
			return nil, nil, eris.Errorf("unknown search backend %q", name)
		}
	}

	rules := search.DefaultRules()
	if cfg.Search.RulesFile != "" {
		r, err := search.LoadRules(cfg.Search.RulesFile)
		if err != nil {
			return nil, nil, eris.Wrap(err, "load search rules")
		}
		rules = r
	}

	ttl := time.Duration(cfg.Search.CacheTTLMins) * time.Minute
	var (
		cache search.Cache
		rdb   *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unavailable, using in-process search cache", zap.Error(err))
			_ = rdb.Close()
			rdb = nil
		}
	}
	if rdb != nil {
		cache = search.NewRedisCache(rdb, ttl)
	} else {
		cache = search.NewMemoryCache(ttl)
	}

	gw := search.NewGateway(backends, search.NewFilter(rules), cache, search.Options{
		Timeout:   time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		RateLimit: cfg.Search.RateLimit,
	})
	return gw, rdb, nil
}

func newJinaClient() jina.Client {
	opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	return jina.NewClient(cfg.Jina.Key, opts...)
}

// newScrapeChain builds the page scrapers: direct HTTP first, then Jina
// Reader and Firecrawl when their keys are set.
func newScrapeChain(pricing *cost.Calculator) *scrape.Chain {
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(time.Duration(cfg.Pipeline.FetchTimeoutSecs)*time.Second, cfg.Pipeline.UserAgent),
	}
	if cfg.Jina.Key != "" {
		scrapers = append(scrapers, scrape.NewJinaAdapter(newJinaClient()))
	}
	if cfg.Firecrawl.Key != "" {
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(
			firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)), pricing))
	}
	return scrape.NewChain(scrape.NewPathMatcher(cfg.Pipeline.ScrapeExclude), scrapers...)
}

// newPublisher collects the configured report targets. With none
// configured the Multi is empty and publishing is a no-op.
func newPublisher() (*publish.Multi, error) {
	var targets []publish.Publisher
	if cfg.Notion.Token != "" && cfg.Notion.ReportDB != "" {
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(3))
		targets = append(targets, publish.NewNotion(client, cfg.Notion.ReportDB))
	}
	if len(cfg.Elastic.Addresses) > 0 {
		es, err := publish.NewElastic(cfg.Elastic.Addresses, cfg.Elastic.Username, cfg.Elastic.Password, cfg.Elastic.Index)
		if err != nil {
			return nil, eris.Wrap(err, "init elasticsearch publisher")
		}
		targets = append(targets, es)
	}
	return publish.NewMulti(time.Minute, targets...), nil
}

func newSyncer(st store.Store) *discovery.Syncer {
	if cfg.Tenderland.Key == "" {
		return nil
	}
	client := tenderland.NewClient(cfg.Tenderland.Key,
		tenderland.WithBaseURL(cfg.Tenderland.BaseURL),
		tenderland.WithRateLimit(cfg.Tenderland.RateLimit),
	)
	return discovery.NewSyncer(st, client, discovery.Options{
		AutosearchID: cfg.Tenderland.AutosearchID,
		BatchSize:    cfg.Tenderland.BatchSize,
		Limit:        cfg.Tenderland.Limit,
	})
}
