package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/store"
)

// --- Reasoning gateway mock ---

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SummarizeDocument(ctx context.Context, path string) string {
	return m.Called(ctx, path).String(0)
}

func (m *mockGateway) SummarizeDocuments(ctx context.Context, paths []string) []string {
	args := m.Called(ctx, paths)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *mockGateway) ExtractStructured(ctx context.Context, text string) string {
	return m.Called(ctx, text).String(0)
}

func (m *mockGateway) GenerateQueries(ctx context.Context, text string) string {
	return m.Called(ctx, text).String(0)
}

func (m *mockGateway) AnalyzePage(ctx context.Context, path, instruction string) string {
	return m.Called(ctx, path, instruction).String(0)
}

func (m *mockGateway) SynthesizeProduct(ctx context.Context, text string) string {
	return m.Called(ctx, text).String(0)
}

func (m *mockGateway) GenerateReport(ctx context.Context, text string) string {
	return m.Called(ctx, text).String(0)
}

// --- Acquirer mock ---

type mockAcquirer struct {
	mock.Mock
}

func (m *mockAcquirer) AcquireAndNormalize(ctx context.Context, key, bundleURL string, opts ...acquire.Option) (*acquire.Result, error) {
	args := m.Called(ctx, key, bundleURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acquire.Result), args.Error(1)
}

func (m *mockAcquirer) Cleanup(workDir string) error {
	return m.Called(workDir).Error(0)
}

// --- Enricher stub ---

// stubEnricher writes a product analysis into every slot, the way the real
// enricher leaves a fully enriched record.
type stubEnricher struct {
	st    store.Store
	calls int
	err   error
}

func (s *stubEnricher) EnrichItems(ctx context.Context, key string, items []model.Item) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	slots := make([]model.FindRequest, len(items))
	for i, it := range items {
		slots[i] = model.NewFindRequest(it.Name)
		analysis := "анализ: " + it.Name
		slots[i].SearchQueries = []string{it.Name + " купить"}
		slots[i].ProductAnalysis = &analysis
	}
	return s.st.SetField(ctx, key, store.PathFindRequests, slots)
}

// --- Publisher stub ---

type stubPublisher struct {
	published []*model.TenderRecord
}

func (s *stubPublisher) Name() string { return "stub" }

func (s *stubPublisher) Publish(_ context.Context, rec *model.TenderRecord) error {
	s.published = append(s.published, rec)
	return nil
}
