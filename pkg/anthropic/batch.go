package anthropic

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Batch processing states reported by GetBatch.
const (
	BatchInProgress = "in_progress"
	BatchCanceling  = "canceling"
	BatchEnded      = "ended"
)

// ResultSucceeded is the result type of a batch item that produced a message.
const ResultSucceeded = "succeeded"

const (
	defaultWaitInterval = 5 * time.Second
	maxWaitInterval     = 30 * time.Second
)

// WaitOption configures WaitBatch.
type WaitOption func(*waitConfig)

type waitConfig struct {
	interval time.Duration
	label    string
}

// WithWaitInterval sets the delay before the second poll. Later delays double
// up to 30s.
func WithWaitInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLabel names the batch's purpose in logs and errors.
func WithLabel(label string) WaitOption {
	return func(c *waitConfig) {
		c.label = label
	}
}

// WaitBatch polls GetBatch until the batch has ended. A batch that is being
// canceled or has expired is an error. The wait is bounded only by ctx.
func WaitBatch(ctx context.Context, client Client, batchID string, opts ...WaitOption) (*BatchResponse, error) {
	cfg := waitConfig{interval: defaultWaitInterval, label: "message"}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := zap.L().With(zap.String("batch", cfg.label), zap.String("batch_id", batchID))

	interval := cfg.interval
	for poll := 1; ; poll++ {
		batch, err := client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, eris.Wrapf(err, "anthropic: %s batch %s: poll %d", cfg.label, batchID, poll)
		}

		counts := batch.RequestCounts
		log.Debug("anthropic: batch status",
			zap.String("status", batch.ProcessingStatus),
			zap.Int("poll", poll),
			zap.Int64("processing", counts.Processing),
			zap.Int64("succeeded", counts.Succeeded),
			zap.Int64("errored", counts.Errored),
		)

		switch batch.ProcessingStatus {
		case BatchEnded:
			if n := counts.Errored + counts.Canceled + counts.Expired; n > 0 {
				log.Warn("anthropic: batch ended with failed requests",
					zap.Int64("succeeded", counts.Succeeded),
					zap.Int64("failed", n),
				)
			}
			return batch, nil
		case BatchCanceling, "canceled":
			return batch, eris.Errorf("anthropic: %s batch %s was canceled", cfg.label, batchID)
		case "expired":
			return batch, eris.Errorf("anthropic: %s batch %s expired", cfg.label, batchID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "anthropic: %s batch %s still %s after %d polls",
				cfg.label, batchID, batch.ProcessingStatus, poll)
		case <-time.After(interval):
		}
		interval = nextInterval(interval)
	}
}

// nextInterval doubles d, caps it at maxWaitInterval and spreads it by up to
// 20% either way.
func nextInterval(d time.Duration) time.Duration {
	d *= 2
	if d > maxWaitInterval {
		d = maxWaitInterval
	}
	spread := int64(d) / 5
	if spread <= 0 {
		return d
	}
	return d - time.Duration(spread) + time.Duration(rand.Int64N(2*spread+1))
}

// BatchResults is the outcome of every request in an ended batch.
type BatchResults struct {
	// Messages holds succeeded answers by custom ID.
	Messages map[string]*MessageResponse
	// Failed maps the custom ID of every other request to its result type.
	Failed map[string]string
}

// ReadBatchResults drains iter and closes it.
func ReadBatchResults(iter BatchResultIterator) (*BatchResults, error) {
	defer iter.Close() //nolint:errcheck

	res := &BatchResults{
		Messages: make(map[string]*MessageResponse),
		Failed:   make(map[string]string),
	}
	for iter.Next() {
		item := iter.Item()
		switch {
		case item.Type == ResultSucceeded && item.Message != nil:
			res.Messages[item.CustomID] = item.Message
		case item.Type == ResultSucceeded:
			res.Failed[item.CustomID] = "empty"
		default:
			res.Failed[item.CustomID] = item.Type
		}
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: read batch results")
	}
	return res, nil
}
