package reasoning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/cost"
	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

type sliceIterator struct {
	items []anthropic.BatchResultItem
	idx   int
}

func (s *sliceIterator) Next() bool {
	if s.idx < len(s.items) {
		s.idx++
		return true
	}
	return false
}

func (s *sliceIterator) Item() anthropic.BatchResultItem { return s.items[s.idx-1] }
func (s *sliceIterator) Err() error                      { return nil }
func (s *sliceIterator) Close() error                    { return nil }

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func newTestClaude(client anthropic.Client, cfg Config) *Claude {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return NewClaude(client, cfg, DefaultPrompts())
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNewClaude_Defaults(t *testing.T) {
	c := NewClaude(&mockClient{}, Config{}, DefaultPrompts())
	assert.NotEmpty(t, c.cfg.Model)
	assert.Equal(t, int64(20000), c.cfg.MaxTokens)
	assert.Equal(t, 3*time.Minute, c.cfg.Timeout)
	assert.Equal(t, 4, c.cfg.Concurrency)
	assert.Zero(t, c.cfg.BatchThreshold)
}

func TestGenerateQueries_OK(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 && req.Messages[0].Parts[0].Text == "Наименование товара: Ноутбук"
	})).Return(textResponse("  ноутбук 15.6 купить\nноутбук 16gb цена \n"), nil)

	c := newTestClaude(client, Config{})
	out := c.GenerateQueries(context.Background(), "Наименование товара: Ноутбук")
	assert.Equal(t, "ноутбук 15.6 купить\nноутбук 16gb цена", out)
	client.AssertExpectations(t)
}

func TestExtractStructured_NotCached(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 && req.System[0].CacheControl == nil
	})).Return(textResponse("```json\n{}\n```"), nil)

	c := newTestClaude(client, Config{})
	assert.Equal(t, "```json\n{}\n```", c.ExtractStructured(context.Background(), "x"))
}

func TestCall_ErrorReturnsEmpty(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	c := newTestClaude(client, Config{})
	assert.Empty(t, c.SynthesizeProduct(context.Background(), "x"))
	assert.Empty(t, c.GenerateReport(context.Background(), "x"))
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestCall_TimeoutReturnsEmpty(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	c := newTestClaude(client, Config{Timeout: 20 * time.Millisecond})
	start := time.Now()
	assert.Empty(t, c.GenerateReport(context.Background(), "x"))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCall_CanceledContextSkipsCall(t *testing.T) {
	client := &mockClient{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClaude(client, Config{})
	assert.Empty(t, c.GenerateQueries(ctx, "x"))
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSummarizeDocument_TextDocument(t *testing.T) {
	dir := t.TempDir()
	p := writeDoc(t, dir, "spec.html", "<html><body><h1>ТЗ</h1><p>Ноутбук 10 шт.</p><script>x()</script></body></html>")

	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		parts := req.Messages[0].Parts
		return len(parts) == 2 && parts[0].Kind == anthropic.PartHTML &&
			parts[0].Title == "spec.html" && !strings.Contains(parts[0].Text, "x()") &&
			strings.Contains(parts[0].Text, "Ноутбук 10 шт.")
	})).Return(textResponse("summary"), nil)

	c := newTestClaude(client, Config{})
	assert.Equal(t, "summary", c.SummarizeDocument(context.Background(), p))
}

func TestSummarizeDocument_UnreadableSkipsCall(t *testing.T) {
	client := &mockClient{}
	c := newTestClaude(client, Config{})
	assert.Empty(t, c.SummarizeDocument(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")))
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnalyzePage_AppendsInstruction(t *testing.T) {
	dir := t.TempDir()
	p := writeDoc(t, dir, "page.html", "<p>Цена 45 000 руб.</p>")

	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.HasSuffix(req.System[0].Text, ProductFactsInstruction)
	})).Return(textResponse("Цена: 45000"), nil)

	c := newTestClaude(client, Config{})
	assert.Equal(t, "Цена: 45000", c.AnalyzePage(context.Background(), p, ProductFactsInstruction))
}

func TestSummarizeDocuments_DirectKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.txt", "alpha")
	b := writeDoc(t, dir, "b.txt", "beta")
	missing := filepath.Join(dir, "gone.txt")

	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Messages[0].Parts[1].Text == "Документ: a.txt"
	})).Return(textResponse("sum-a"), nil)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Messages[0].Parts[1].Text == "Документ: b.txt"
	})).Return(textResponse("sum-b"), nil)

	c := newTestClaude(client, Config{})
	out := c.SummarizeDocuments(context.Background(), []string{a, missing, b})
	assert.Equal(t, []string{"sum-a", "", "sum-b"}, out)
	client.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestSummarizeDocuments_Empty(t *testing.T) {
	c := newTestClaude(&mockClient{}, Config{})
	assert.Nil(t, c.SummarizeDocuments(context.Background(), nil))
}

func TestSummarizeDocuments_Batch(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "a.txt", "alpha"),
		writeDoc(t, dir, "b.txt", "beta"),
		writeDoc(t, dir, "c.txt", "gamma"),
	}

	client := &mockClient{}
	client.On("CreateBatch", mock.Anything, mock.MatchedBy(func(req anthropic.BatchRequest) bool {
		return len(req.Requests) == 3 && req.Requests[0].CustomID == "doc-0000"
	})).Return(&anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: "in_progress"}, nil)
	client.On("GetBatch", mock.Anything, "batch-1").
		Return(&anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: "ended"}, nil)
	client.On("GetBatchResults", mock.Anything, "batch-1").Return(&sliceIterator{items: []anthropic.BatchResultItem{
		{CustomID: "doc-0000", Type: "succeeded", Message: textResponse("sum-a")},
		{CustomID: "doc-0001", Type: "errored"},
		{CustomID: "doc-0002", Type: "succeeded", Message: textResponse(" sum-c ")},
	}}, nil)

	c := newTestClaude(client, Config{BatchThreshold: 3, PollInterval: time.Millisecond})
	out := c.SummarizeDocuments(context.Background(), paths)
	assert.Equal(t, []string{"sum-a", "", "sum-c"}, out)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestSummarizeBatch_MixedResults(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "notice.txt", "извещение"),
		writeDoc(t, dir, "contract.txt", "контракт"),
		writeDoc(t, dir, "spec.txt", "техзадание"),
	}

	client := &mockClient{}
	client.On("CreateBatch", mock.Anything, mock.Anything).
		Return(&anthropic.BatchResponse{ID: "batch-2", ProcessingStatus: anthropic.BatchInProgress}, nil)
	client.On("GetBatch", mock.Anything, "batch-2").
		Return(&anthropic.BatchResponse{ID: "batch-2", ProcessingStatus: anthropic.BatchInProgress}, nil).Once()
	client.On("GetBatch", mock.Anything, "batch-2").
		Return(&anthropic.BatchResponse{ID: "batch-2", ProcessingStatus: anthropic.BatchEnded,
			RequestCounts: anthropic.RequestCounts{Succeeded: 1, Errored: 1, Expired: 1}}, nil).Once()
	client.On("GetBatchResults", mock.Anything, "batch-2").Return(&sliceIterator{items: []anthropic.BatchResultItem{
		{CustomID: "doc-0002", Type: anthropic.ResultSucceeded, Message: textResponse("сводка ТЗ")},
		{CustomID: "doc-0000", Type: "errored"},
		{CustomID: "doc-0001", Type: "expired"},
	}}, nil)

	c := newTestClaude(client, Config{PollInterval: time.Millisecond})
	out, err := c.summarizeBatch(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", "сводка ТЗ"}, out)
	client.AssertNumberOfCalls(t, "GetBatch", 2)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSummarizeBatch_CanceledBatchIsGatewayError(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeDoc(t, dir, "a.txt", "alpha")}

	client := &mockClient{}
	client.On("CreateBatch", mock.Anything, mock.Anything).
		Return(&anthropic.BatchResponse{ID: "batch-3", ProcessingStatus: anthropic.BatchInProgress}, nil)
	client.On("GetBatch", mock.Anything, "batch-3").
		Return(&anthropic.BatchResponse{ID: "batch-3", ProcessingStatus: anthropic.BatchCanceling}, nil)

	c := newTestClaude(client, Config{PollInterval: time.Millisecond})
	_, err := c.summarizeBatch(context.Background(), paths)
	require.Error(t, err)
	var gerr *resilience.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, err.Error(), "summary batch batch-3 was canceled")
	client.AssertNotCalled(t, "GetBatchResults", mock.Anything, mock.Anything)
}

func TestSummarizeDocuments_BatchFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeDoc(t, dir, "a.txt", "alpha"), writeDoc(t, dir, "b.txt", "beta")}

	client := &mockClient{}
	client.On("CreateBatch", mock.Anything, mock.Anything).Return(nil, errors.New("batches disabled"))
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("direct"), nil)

	c := newTestClaude(client, Config{BatchThreshold: 2})
	out := c.SummarizeDocuments(context.Background(), paths)
	assert.Equal(t, []string{"direct", "direct"}, out)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestCall_RecordsSpend(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "отчёт"}},
		Usage:   anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000},
	}, nil)

	spend := metrics.SpendUSD.WithLabelValues("anthropic", "generate_report")
	before := testutil.ToFloat64(spend)

	c := newTestClaude(client, Config{
		Model:   "claude-sonnet-4-5-20250929",
		Pricing: cost.NewCalculator(cost.DefaultRates()),
	})
	require.Equal(t, "отчёт", c.GenerateReport(context.Background(), "x"))

	assert.InDelta(t, 4.5, testutil.ToFloat64(spend)-before, 1e-9)
}
