// Package reasoning is the gateway to the Anthropic Messages API. Every
// operation is bounded by a timeout and returns an empty string on failure.
package reasoning

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/cost"
	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/pkg/anthropic"
)

// Gateway is the reasoning service as seen by the pipeline.
type Gateway interface {
	SummarizeDocument(ctx context.Context, path string) string
	SummarizeDocuments(ctx context.Context, paths []string) []string
	ExtractStructured(ctx context.Context, text string) string
	GenerateQueries(ctx context.Context, text string) string
	AnalyzePage(ctx context.Context, path, instruction string) string
	SynthesizeProduct(ctx context.Context, text string) string
	GenerateReport(ctx context.Context, text string) string
}

// Config tunes the Claude gateway.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	// Concurrency bounds parallel per-document calls.
	Concurrency int
	// BatchThreshold switches SummarizeDocuments to the batch API once the
	// file count reaches it. Zero disables batching.
	BatchThreshold int
	// BatchTimeout bounds the wait for a summary batch.
	BatchTimeout time.Duration
	PollInterval time.Duration
	// Pricing turns token usage into the spend metric. Optional.
	Pricing *cost.Calculator
}

// Claude implements Gateway on top of an anthropic.Client.
type Claude struct {
	client  anthropic.Client
	cfg     Config
	prompts Prompts
}

// NewClaude creates a Claude gateway.
func NewClaude(client anthropic.Client, cfg Config, prompts Prompts) *Claude {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 20000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Claude{client: client, cfg: cfg, prompts: prompts}
}

// SummarizeDocument summarizes one normalized file.
func (c *Claude) SummarizeDocument(ctx context.Context, path string) string {
	part, err := loadPart(path)
	if err != nil {
		zap.L().Warn("reasoning: unreadable document", zap.String("file", filepath.Base(path)), zap.Error(err))
		return ""
	}
	return c.call(ctx, "summarize_document", c.prompts.Summarize, true, part,
		anthropic.TextPart("Документ: "+filepath.Base(path)))
}

// ExtractStructured turns combined summaries into a fenced JSON extraction.
func (c *Claude) ExtractStructured(ctx context.Context, text string) string {
	return c.call(ctx, "extract_structured", c.prompts.Extract, false, anthropic.TextPart(text))
}

// GenerateQueries returns newline-delimited search queries for an item.
func (c *Claude) GenerateQueries(ctx context.Context, text string) string {
	return c.call(ctx, "generate_queries", c.prompts.Queries, true, anthropic.TextPart(text))
}

// AnalyzePage applies instruction to a saved page.
func (c *Claude) AnalyzePage(ctx context.Context, path, instruction string) string {
	part, err := loadPart(path)
	if err != nil {
		zap.L().Debug("reasoning: unreadable page", zap.String("file", filepath.Base(path)), zap.Error(err))
		return ""
	}
	return c.call(ctx, "analyze_page", c.prompts.Page+"\n\n"+instruction, true, part)
}

// SynthesizeProduct produces the per-item analysis.
func (c *Claude) SynthesizeProduct(ctx context.Context, text string) string {
	return c.call(ctx, "synthesize_product", c.prompts.Product, false, anthropic.TextPart(text))
}

// GenerateReport produces the final tender report.
func (c *Claude) GenerateReport(ctx context.Context, text string) string {
	return c.call(ctx, "generate_report", c.prompts.Report, false, anthropic.TextPart(text))
}

func (c *Claude) request(system string, cached bool, parts ...anthropic.ContentPart) anthropic.MessageRequest {
	sys := []anthropic.SystemBlock{{Text: system}}
	if cached {
		sys = anthropic.BuildCachedSystemBlocks(system)
	}
	return anthropic.MessageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    sys,
		Messages:  []anthropic.Message{anthropic.UserMessage(parts...)},
	}
}

func (c *Claude) call(ctx context.Context, op, system string, cached bool, parts ...anthropic.ContentPart) string {
	if err := ctx.Err(); err != nil {
		return ""
	}
	started := time.Now()
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateMessage(cctx, c.request(system, cached, parts...))
	if err != nil {
		gerr := resilience.NewGatewayError("reasoning", op, err)
		outcome := metrics.OutcomeError
		if gerr.Timeout || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			gerr.Timeout = true
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveGateway("reasoning", op, outcome, started)
		zap.L().Warn("reasoning: call failed", zap.Error(gerr))
		return ""
	}

	c.recordUsage(op, false, resp.Usage)
	text := strings.TrimSpace(resp.Text())
	outcome := metrics.OutcomeOK
	if text == "" {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveGateway("reasoning", op, outcome, started)
	return text
}

func (c *Claude) recordUsage(op string, isBatch bool, u anthropic.TokenUsage) {
	u.LogCost(c.cfg.Model, op)
	usd := c.cfg.Pricing.Claude(c.cfg.Model, isBatch, cost.Usage{
		Input:      u.InputTokens,
		Output:     u.OutputTokens,
		CacheWrite: u.CacheCreationInputTokens,
		CacheRead:  u.CacheReadInputTokens,
	})
	metrics.SpendUSD.WithLabelValues("anthropic", op).Add(usd)
}
