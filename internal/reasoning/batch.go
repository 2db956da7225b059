package reasoning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/pkg/anthropic"
)

// SummarizeDocuments summarizes every path, returning results in input
// order. A failed document yields "" at its position.
func (c *Claude) SummarizeDocuments(ctx context.Context, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	if c.cfg.BatchThreshold > 0 && len(paths) >= c.cfg.BatchThreshold {
		out, err := c.summarizeBatch(ctx, paths)
		if err == nil {
			return out
		}
		zap.L().Warn("reasoning: batch summary failed, falling back to direct calls",
			zap.Int("files", len(paths)), zap.Error(err))
	}
	return c.summarizeDirect(ctx, paths)
}

func (c *Claude) summarizeDirect(ctx context.Context, paths []string) []string {
	out := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			out[i] = c.SummarizeDocument(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func batchID(i int) string {
	return fmt.Sprintf("doc-%04d", i)
}

func (c *Claude) summarizeBatch(ctx context.Context, paths []string) ([]string, error) {
	started := time.Now()
	out := make([]string, len(paths))

	var items []anthropic.BatchRequestItem
	for i, p := range paths {
		part, err := loadPart(p)
		if err != nil {
			zap.L().Warn("reasoning: unreadable document", zap.String("file", filepath.Base(p)), zap.Error(err))
			continue
		}
		items = append(items, anthropic.BatchRequestItem{
			CustomID: batchID(i),
			Params: c.request(c.prompts.Summarize, true, part,
				anthropic.TextPart("Документ: "+filepath.Base(p))),
		})
	}
	if len(items) == 0 {
		return out, nil
	}

	fail := func(err error) ([]string, error) {
		gerr := resilience.NewGatewayError("reasoning", "summarize_batch", err)
		outcome := metrics.OutcomeError
		if gerr.Timeout {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveGateway("reasoning", "summarize_batch", outcome, started)
		return nil, gerr
	}

	batch, err := c.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return fail(err)
	}
	zap.L().Info("reasoning: summary batch submitted",
		zap.String("batch_id", batch.ID), zap.Int("requests", len(items)))

	pctx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
	defer cancel()
	if _, err := anthropic.WaitBatch(pctx, c.client, batch.ID,
		anthropic.WithLabel("summary"),
		anthropic.WithWaitInterval(c.cfg.PollInterval)); err != nil {
		return fail(err)
	}

	iter, err := c.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return fail(err)
	}
	results, err := anthropic.ReadBatchResults(iter)
	if err != nil {
		return fail(err)
	}

	for i, p := range paths {
		if kind, failed := results.Failed[batchID(i)]; failed {
			zap.L().Warn("reasoning: document missing from summary batch",
				zap.String("batch_id", batch.ID),
				zap.String("file", filepath.Base(p)),
				zap.String("result", kind),
			)
			continue
		}
		resp, ok := results.Messages[batchID(i)]
		if !ok {
			continue
		}
		c.recordUsage("summarize_batch", true, resp.Usage)
		out[i] = strings.TrimSpace(resp.Text())
	}
	metrics.ObserveGateway("reasoning", "summarize_batch", metrics.OutcomeOK, started)
	return out, nil
}
