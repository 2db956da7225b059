package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/config"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/monitoring"
)

func TestComputeRunStats(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{Status: model.RunStatusComplete, CreatedAt: base, UpdatedAt: base.Add(60 * time.Second)},
		{Status: model.RunStatusComplete, CreatedAt: base, UpdatedAt: base.Add(120 * time.Second)},
		{Status: model.RunStatusFailed, Stage: model.StageNew, CreatedAt: base, UpdatedAt: base},
		{Status: model.RunStatusFailed, Stage: model.StageExtracted, CreatedAt: base, UpdatedAt: base},
		{Status: model.RunStatusFailed, Stage: model.StageExtracted, CreatedAt: base, UpdatedAt: base},
		{Status: model.RunStatusRunning, CreatedAt: base, UpdatedAt: base},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 1, s.FailedAt[model.StageNew])
	assert.Equal(t, 2, s.FailedAt[model.StageExtracted])
	assert.InDelta(t, 90.0, s.AvgDurSecs, 0.001)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestFormatRunsList(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{{
		ID:        "0d6f8a3c-1111-2222-3333-444455556666",
		RegNumber: testReg,
		Status:    model.RunStatusFailed,
		Stage:     model.StageExtracted,
		Error:     strings.Repeat("x", 60),
		CreatedAt: base,
		UpdatedAt: base.Add(90 * time.Second),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "0d6f8a3c")
	assert.NotContains(t, out, "0d6f8a3c-1111")
	assert.Contains(t, out, testReg)
	assert.Contains(t, out, "extracted")
	assert.Contains(t, out, "2026-03-01 10:00")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, strings.Repeat("x", 37)+"...")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Total:      3,
		Complete:   1,
		Failed:     2,
		FailedAt:   map[model.Stage]int{model.StageNew: 2},
		AvgDurSecs: 12.5,
	})
	out := buf.String()

	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "after new:")
	assert.Contains(t, out, "12.5s")
	assert.NotContains(t, out, "after extracted")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
	assert.Equal(t, "abc", truncateID("abc"))
}

func TestFormatHealth(t *testing.T) {
	snap := &monitoring.Snapshot{
		RunsTotal:     10,
		RunsComplete:  6,
		RunsFailed:    4,
		FailRate:      0.4,
		StuckRuns:     []string{"r1"},
		Backlog:       3,
		LookbackHours: 24,
	}

	var buf bytes.Buffer
	formatHealth(&buf, snap, nil)
	assert.Contains(t, buf.String(), "Failure rate:")
	assert.Contains(t, buf.String(), "40.0%")
	assert.Contains(t, buf.String(), "No alerts.")

	buf.Reset()
	formatHealth(&buf, snap, []monitoring.Alert{{Severity: "high", Message: "too many failures"}})
	assert.Contains(t, buf.String(), "[high] too many failures")
	assert.NotContains(t, buf.String(), "No alerts.")
}

func TestNewChecker_UsesConfig(t *testing.T) {
	withConfig(t, &config.Config{Monitoring: config.MonitoringConfig{BacklogThreshold: 1, LookbackWindowHours: 24}})
	st := newTestStore(t)
	seedTender(t, st, "T-1")
	seedTender(t, st, "T-2")

	snap, alerts := newChecker(st).Check(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Backlog)
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertBacklog, alerts[0].Type)
}
