// Package pipeline drives a tender through normalization, extraction,
// item enrichment and the final report. The tender record is the
// checkpoint: a rerun resumes after the last committed stage.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/publish"
	"github.com/sells-group/tender-cli/internal/reasoning"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
)

// Acquirer downloads and normalizes a tender's document bundle.
type Acquirer interface {
	AcquireAndNormalize(ctx context.Context, key, bundleURL string, opts ...acquire.Option) (*acquire.Result, error)
	Cleanup(workDir string) error
}

// Enricher fans extracted items out to web search.
type Enricher interface {
	EnrichItems(ctx context.Context, key string, items []model.Item) error
}

// Options tunes the pipeline.
type Options struct {
	// KeepFiles leaves the normalized documents on disk after extraction.
	KeepFiles bool
}

// Phase is the timing of one stage of a run.
type Phase struct {
	Stage    model.Stage   `json:"stage"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunResult summarizes one pipeline invocation.
type RunResult struct {
	RunID     string      `json:"run_id"`
	RegNumber string      `json:"reg_number"`
	Stage     model.Stage `json:"stage"`
	Report    string      `json:"report,omitempty"`
	Phases    []Phase     `json:"phases"`
}

// Pipeline orchestrates the analysis of a single tender.
type Pipeline struct {
	store     store.Store
	acquirer  Acquirer
	reasoning reasoning.Gateway
	enricher  Enricher
	publisher publish.Publisher
	opts      Options
}

// New creates a Pipeline with all dependencies. publisher may be nil.
func New(st store.Store, acq Acquirer, gw reasoning.Gateway, enr Enricher, pub publish.Publisher, opts Options) *Pipeline {
	return &Pipeline{
		store:     st,
		acquirer:  acq,
		reasoning: gw,
		enricher:  enr,
		publisher: pub,
		opts:      opts,
	}
}

// Run analyzes the tender key, skipping stages the record has already
// committed. Acquisition options apply only when documents are fetched.
func (p *Pipeline) Run(ctx context.Context, key string, opts ...acquire.Option) (*RunResult, error) {
	log := zap.L().With(zap.String("reg_number", key))

	rec, err := p.store.FindByKey(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load record")
	}
	if rec == nil {
		return nil, eris.Wrapf(resilience.ErrTenderNotFound, "pipeline: %s", key)
	}

	run, err := p.store.CreateRun(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &RunResult{RunID: run.ID, RegNumber: key, Stage: rec.Stage()}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting", zap.String("stage", string(result.Stage)))

	fail := func(err error) (*RunResult, error) {
		metrics.RunsTotal.WithLabelValues(string(model.RunStatusFailed)).Inc()
		p.finishRun(run.ID, model.RunStatusFailed, result.Stage, err)
		log.Error("pipeline: run failed",
			zap.String("stage", string(result.Stage)),
			zap.String("reason", resilience.UserMessage(err)),
			zap.Error(err),
		)
		return result, err
	}

	trackPhase := func(stage model.Stage, fn func() error) error {
		start := time.Now()
		fnErr := fn()
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())

		ph := Phase{Stage: stage, Duration: elapsed}
		if fnErr != nil {
			ph.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", string(stage)),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
				zap.Error(fnErr),
			)
		} else {
			result.Stage = stage
			log.Info("pipeline: phase complete",
				zap.String("phase", string(stage)),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
			)
		}
		result.Phases = append(result.Phases, ph)
		return fnErr
	}

	if !result.Stage.Reached(model.StageExtracted) {
		var files *acquire.Result
		err := trackPhase(model.StageFilesNormalized, func() error {
			if rec.Metadata.FilesURL == "" {
				return &resilience.DownloadError{Err: eris.New("tender has no document bundle")}
			}
			var err error
			files, err = p.acquirer.AcquireAndNormalize(ctx, key, rec.Metadata.FilesURL, opts...)
			return err
		})
		if err != nil {
			return fail(err)
		}

		err = trackPhase(model.StageExtracted, func() error {
			ext, err := p.RunExtraction(ctx, key, files.NormalizedFiles)
			rec.ExtractedAnalysis = ext
			return err
		})
		if !p.opts.KeepFiles {
			if cerr := p.acquirer.Cleanup(files.WorkDir); cerr != nil {
				log.Warn("pipeline: cleanup failed", zap.Error(cerr))
			}
		}
		if err != nil {
			return fail(err)
		}
	}

	if !result.Stage.Reached(model.StageItemsEnriched) {
		err := trackPhase(model.StageItemsEnriched, func() error {
			return p.enricher.EnrichItems(ctx, key, rec.Items())
		})
		if err != nil {
			return fail(err)
		}
	}

	err = trackPhase(model.StageReportGenerated, func() error {
		report, err := p.RunFinalReport(ctx, key)
		result.Report = report
		return err
	})
	if err != nil {
		return fail(err)
	}

	metrics.RunsTotal.WithLabelValues(string(model.RunStatusComplete)).Inc()
	p.finishRun(run.ID, model.RunStatusComplete, result.Stage, nil)
	log.Info("pipeline: complete", zap.Int("phases", len(result.Phases)))
	return result, nil
}

func (p *Pipeline) finishRun(runID string, status model.RunStatus, stage model.Stage, runErr error) {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	// The run context may already be canceled; the audit row still gets written.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FinishRun(ctx, runID, status, stage, msg); err != nil {
		zap.L().Warn("pipeline: failed to finish run", zap.String("run_id", runID), zap.Error(err))
	}
}

// RunExtraction summarizes each normalized file, merges the summaries and
// asks for the structured tender analysis. A response without a valid
// fenced JSON block stores a null analysis and returns
// *resilience.ExtractionParseError.
func (p *Pipeline) RunExtraction(ctx context.Context, key string, files []string) (*model.TenderExtraction, error) {
	files = append([]string(nil), files...)
	sort.Strings(files)
	summaries := p.reasoning.SummarizeDocuments(ctx, files)

	merged := MergeSummaries(files, summaries)
	var (
		ext *model.TenderExtraction
		err error
	)
	if merged == "" {
		err = &resilience.ExtractionParseError{Reason: "no document summaries"}
	} else {
		ext, err = reasoning.ParseExtraction(p.reasoning.ExtractStructured(ctx, merged))
	}

	var value any
	if ext != nil {
		value = ext
	}
	if werr := p.store.SetField(ctx, key, store.PathExtractedAnalysis, value); werr != nil {
		return nil, &resilience.StoreWriteError{Key: key, Path: store.PathExtractedAnalysis.String(), Err: werr}
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: extraction stored",
		zap.String("reg_number", key),
		zap.Int("files", len(files)),
		zap.Int("items", len(ext.Items)),
	)
	return ext, nil
}

// RunFinalReport returns the tender's final report followed by the item
// analyses. An already processed tender is answered from the store without
// calling the reasoning service; otherwise the report is generated, stored
// together with isProcessed and published.
func (p *Pipeline) RunFinalReport(ctx context.Context, key string) (string, error) {
	rec, err := p.store.FindByKey(ctx, key)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: load record")
	}
	if rec == nil {
		return "", eris.Wrapf(resilience.ErrTenderNotFound, "pipeline: %s", key)
	}
	if rec.IsProcessed && rec.FinalReport != nil {
		return ComposeReport(*rec.FinalReport, rec.ProductAnalyses()), nil
	}

	report := p.reasoning.GenerateReport(ctx, RenderRecord(rec))
	if strings.TrimSpace(report) == "" {
		return "", eris.Wrapf(resilience.ErrNoReport, "pipeline: %s", key)
	}
	if err := p.store.MarkProcessed(ctx, key, report); err != nil {
		return "", &resilience.StoreWriteError{Key: key, Path: "finalReport", Err: err}
	}
	rec.FinalReport = &report
	rec.IsProcessed = true

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			zap.L().Warn("pipeline: publish failed", zap.String("reg_number", key), zap.Error(err))
		}
	}
	return ComposeReport(report, rec.ProductAnalyses()), nil
}
