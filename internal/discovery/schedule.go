package discovery

import (
	"context"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSchedule runs every 15 minutes during working hours. The expression has
// a leading seconds field.
const DefaultSchedule = "0 */15 8-20 * * *"

// RunScheduled invokes fn on the cron spec until ctx is canceled. Ticks
// that fire while the previous invocation is still running are skipped.
func RunScheduled(ctx context.Context, spec string, fn func(ctx context.Context)) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	busy := make(chan struct{}, 1)

	c := cron.New()
	err := c.AddFunc(spec, func() {
		select {
		case busy <- struct{}{}:
		default:
			zap.L().Warn("discovery: previous run still in progress, skipping tick")
			return
		}
		defer func() { <-busy }()
		fn(ctx)
	})
	if err != nil {
		return eris.Wrapf(err, "discovery: invalid schedule %q", spec)
	}

	zap.L().Info("discovery: scheduler started", zap.String("schedule", spec))
	c.Start()
	<-ctx.Done()
	c.Stop()
	zap.L().Info("discovery: scheduler stopped")
	return nil
}
