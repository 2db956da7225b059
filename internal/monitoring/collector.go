package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/store"
)

// maxRuns bounds how many recent runs one snapshot reads.
const maxRuns = 10000

// Snapshot holds a point-in-time view of pipeline health.
type Snapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int                 `json:"runs_total"`
	RunsComplete int                 `json:"runs_complete"`
	RunsFailed   int                 `json:"runs_failed"`
	RunsRunning  int                 `json:"runs_running"`
	FailRate     float64             `json:"fail_rate"`
	FailedAt     map[model.Stage]int `json:"failed_at,omitempty"`

	// Runs still marked running after the stuck threshold.
	StuckRuns []string `json:"stuck_runs,omitempty"`

	// Tenders without a final report, capped at the backlog query limit.
	Backlog int `json:"backlog"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers pipeline health from the store.
type Collector struct {
	store        store.Store
	stuckAfter   time.Duration
	backlogLimit int
	now          func() time.Time
}

// NewCollector creates a collector. Runs older than stuckAfter that are still
// running count as stuck; the backlog count stops at backlogLimit.
func NewCollector(st store.Store, stuckAfter time.Duration, backlogLimit int) *Collector {
	if stuckAfter <= 0 {
		stuckAfter = time.Hour
	}
	if backlogLimit <= 0 {
		backlogLimit = 1000
	}
	return &Collector{store: st, stuckAfter: stuckAfter, backlogLimit: backlogLimit, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		FailedAt:      make(map[model.Stage]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: maxRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs come newest first.
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			break
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
			snap.FailedAt[r.Stage]++
		default:
			snap.RunsRunning++
			if now.Sub(r.CreatedAt) > c.stuckAfter {
				snap.StuckRuns = append(snap.StuckRuns, r.ID)
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}

	pending, err := c.store.ListUnprocessed(ctx, c.backlogLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list unprocessed")
	}
	snap.Backlog = len(pending)

	return snap, nil
}
