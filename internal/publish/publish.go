// Package publish delivers finished tender reports to external systems.
// Publishing is best effort: a failed target never fails the analysis.
package publish

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tender-cli/internal/model"
)

// Publisher delivers a processed tender record.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, rec *model.TenderRecord) error
}

// Multi publishes to every target concurrently.
type Multi struct {
	targets []Publisher
	timeout time.Duration
}

// NewMulti creates a Multi. Each target gets timeout to finish; zero means
// one minute.
func NewMulti(timeout time.Duration, targets ...Publisher) *Multi {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Multi{targets: targets, timeout: timeout}
}

// Name implements Publisher.
func (m *Multi) Name() string { return "multi" }

// Targets returns the target names.
func (m *Multi) Targets() []string {
	out := make([]string, len(m.targets))
	for i, t := range m.targets {
		out[i] = t.Name()
	}
	return out
}

// Publish sends rec to all targets and waits for them. Target failures are
// logged and never returned.
func (m *Multi) Publish(ctx context.Context, rec *model.TenderRecord) error {
	g := new(errgroup.Group)
	for _, t := range m.targets {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			if err := t.Publish(tctx, rec); err != nil {
				zap.L().Warn("publish: target failed",
					zap.String("target", t.Name()),
					zap.String("reg_number", rec.RegNumber),
					zap.Error(err),
				)
				return nil
			}
			zap.L().Info("publish: report delivered",
				zap.String("target", t.Name()),
				zap.String("reg_number", rec.RegNumber),
			)
			return nil
		})
	}
	return g.Wait()
}
