package publish

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/model"
)

type stubPublisher struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubPublisher) Name() string { return s.name }

func (s *stubPublisher) Publish(ctx context.Context, _ *model.TenderRecord) error {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.err
}

func strPtr(s string) *string { return &s }

func processedRecord() *model.TenderRecord {
	rec := model.NewTenderRecord("0373100000124000001", model.TenderMetadata{
		Name:       "Поставка офисной мебели",
		BeginPrice: 1250000,
		Region:     "Москва",
		Customers:  []model.Customer{{ShortName: "ГБУ «Школа 1»"}},
	})
	rec.ExtractedAnalysis = &model.TenderExtraction{Items: []model.Item{{Name: "Кресло"}, {Name: "Стол"}}}
	rec.FindRequests = []model.FindRequest{
		{ItemName: "Кресло", ProductAnalysis: strPtr("Кресла есть у трёх поставщиков.")},
		{ItemName: "Стол"},
	}
	rec.IsProcessed = true
	rec.FinalReport = strPtr("Рекомендация: участвовать.")
	return rec
}

func TestMulti_FailureIsolated(t *testing.T) {
	ok := &stubPublisher{name: "elasticsearch"}
	bad := &stubPublisher{name: "notion", err: errors.New("notion: HTTP 502")}
	m := NewMulti(time.Second, ok, bad)

	require.NoError(t, m.Publish(context.Background(), processedRecord()))

	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(1), bad.calls.Load())
	assert.Equal(t, []string{"elasticsearch", "notion"}, m.Targets())
	assert.Equal(t, "multi", m.Name())
}

func TestMulti_TargetTimeout(t *testing.T) {
	slow := &stubPublisher{name: "slow", delay: time.Minute}
	m := NewMulti(20*time.Millisecond, slow)

	start := time.Now()
	require.NoError(t, m.Publish(context.Background(), processedRecord()))
	assert.Less(t, time.Since(start), 5*time.Second)
}
