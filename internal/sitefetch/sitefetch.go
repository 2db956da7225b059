// Package sitefetch downloads candidate product pages into a per-run scratch
// directory so the reasoning gateway can read them as files.
package sitefetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/scrape"
)

// Scraper fetches one URL. *scrape.Chain satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

// Fetcher saves pages under {root}/html/{run-id}/. One Fetcher serves one
// enrichment run; Cleanup removes everything it wrote.
type Fetcher struct {
	scraper Scraper
	runID   string
	dir     string

	mu      sync.Mutex
	created bool
}

// New creates a Fetcher rooted at workDir with a fresh run id.
func New(scraper Scraper, workDir string) *Fetcher {
	runID := uuid.NewString()
	return &Fetcher{
		scraper: scraper,
		runID:   runID,
		dir:     filepath.Join(workDir, "html", runID),
	}
}

// RunID returns the scratch directory's run id.
func (f *Fetcher) RunID() string { return f.runID }

// Dir returns the scratch directory. It exists only after the first save.
func (f *Fetcher) Dir() string { return f.dir }

// FetchAndSave scrapes url and writes the result to {dir}/{destName}.{ext}.
// Cleaned markup is saved as .html, PDFs as .pdf and reader-API markdown as
// .txt. An empty destName gets a random name. It returns the written path.
func (f *Fetcher) FetchAndSave(ctx context.Context, url, destName string) (string, error) {
	res, err := f.scraper.Scrape(ctx, url)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.SiteFetches.WithLabelValues(outcome).Inc()
		return "", eris.Wrapf(err, "sitefetch: %s", url)
	}

	ext, body := encode(res)
	if len(body) == 0 {
		metrics.SiteFetches.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return "", eris.Errorf("sitefetch: %s: empty content", url)
	}

	if err := f.ensureDir(); err != nil {
		return "", err
	}
	if destName == "" {
		destName = uuid.NewString()
	}
	path := filepath.Join(f.dir, sanitize(destName)+ext)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		metrics.SiteFetches.WithLabelValues(metrics.OutcomeError).Inc()
		return "", eris.Wrapf(err, "sitefetch: write %s", path)
	}

	metrics.SiteFetches.WithLabelValues(metrics.OutcomeOK).Inc()
	zap.L().Debug("sitefetch: saved page",
		zap.String("url", url),
		zap.String("source", res.Source),
		zap.String("path", path),
	)
	return path, nil
}

// Cleanup removes the run's scratch directory.
func (f *Fetcher) Cleanup() error {
	return eris.Wrap(os.RemoveAll(f.dir), "sitefetch: cleanup")
}

func (f *Fetcher) ensureDir() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return eris.Wrap(err, "sitefetch: create scratch dir")
	}
	f.created = true
	return nil
}

func encode(res *scrape.Result) (string, []byte) {
	switch {
	case res.IsPDF():
		return ".pdf", res.PDF
	case strings.TrimSpace(res.Page.HTML) != "":
		return ".html", []byte(res.Page.HTML)
	case strings.TrimSpace(res.Page.Markdown) != "":
		var b strings.Builder
		if res.Page.Title != "" {
			b.WriteString("# " + res.Page.Title + "\n")
		}
		b.WriteString("URL: " + res.Page.URL + "\n\n")
		b.WriteString(res.Page.Markdown)
		return ".txt", []byte(b.String())
	default:
		return "", nil
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, filepath.Base(name))
}
