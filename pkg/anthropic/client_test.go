package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func (m *MockClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(BatchResultIterator), args.Error(1)
}

// MockBatchResultIterator implements BatchResultIterator for testing.
type MockBatchResultIterator struct {
	mock.Mock
	items []BatchResultItem
	idx   int
	err   error
}

// NewMockBatchResultIterator creates an iterator that yields the given items.
func NewMockBatchResultIterator(items []BatchResultItem) *MockBatchResultIterator {
	return &MockBatchResultIterator{
		items: items,
		idx:   -1,
	}
}

// NewMockBatchResultIteratorWithError creates an iterator that fails after
// yielding the given items.
func NewMockBatchResultIteratorWithError(items []BatchResultItem, err error) *MockBatchResultIterator {
	return &MockBatchResultIterator{
		items: items,
		idx:   -1,
		err:   err,
	}
}

func (m *MockBatchResultIterator) Next() bool {
	if m.idx+1 < len(m.items) {
		m.idx++
		return true
	}
	return false
}

func (m *MockBatchResultIterator) Item() BatchResultItem {
	return m.items[m.idx]
}

func (m *MockBatchResultIterator) Err() error {
	if m.idx+1 >= len(m.items) {
		return m.err
	}
	return nil
}

func (m *MockBatchResultIterator) Close() error {
	return nil
}

func TestToSDKMessages_Parts(t *testing.T) {
	pdf, err := PDFPart([]byte("%PDF-1.4 body"), "notice.pdf")
	require.NoError(t, err)
	doc, err := DocumentTextPart("<p>spec</p>", "spec.html")
	require.NoError(t, err)

	msgs := []Message{
		UserMessage(TextPart("Summarize"), pdf, doc),
		{Role: "assistant", Parts: []ContentPart{TextPart("ok")}},
	}

	sdkMsgs := toSDKMessages(msgs)
	require.Len(t, sdkMsgs, 2)
	require.Len(t, sdkMsgs[0].Content, 3)
	assert.NotNil(t, sdkMsgs[0].Content[0].OfText)
	require.NotNil(t, sdkMsgs[0].Content[1].OfDocument)
	require.NotNil(t, sdkMsgs[0].Content[2].OfDocument)
	assert.Equal(t, "assistant", string(sdkMsgs[1].Role))
}

func TestPDFPart_Validation(t *testing.T) {
	_, err := PDFPart(nil, "empty.pdf")
	require.Error(t, err)

	_, err = PDFPart([]byte("<html>"), "fake.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a pdf")

	p, err := PDFPart([]byte("%PDF-1.7"), "real.pdf")
	require.NoError(t, err)
	assert.Equal(t, PartDocument, p.Kind)
	assert.Equal(t, "document", p.Kind.String())
}

func TestDocumentTextPart_RejectsBlank(t *testing.T) {
	_, err := DocumentTextPart("  \n", "blank.csv")
	require.Error(t, err)

	p, err := DocumentTextPart("a,b\n1,2", "items.csv")
	require.NoError(t, err)
	assert.Equal(t, PartHTML, p.Kind)
	assert.Equal(t, "items.csv", p.Title)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first "},
		{Type: "tool_use"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first second", resp.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestSDKTypeConversion_toSDKSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("Ты аналитик закупок.")
	blocks = append([]SystemBlock{{Text: "plain"}}, blocks...)

	sdkBlocks := toSDKSystemBlocks(blocks)
	require.Len(t, sdkBlocks, 2)
	assert.Equal(t, "plain", sdkBlocks[0].Text)
	assert.Equal(t, "Ты аналитик закупок.", sdkBlocks[1].Text)
	assert.Equal(t, "1h", string(sdkBlocks[1].CacheControl.TTL))
}

func TestEstimateCost(t *testing.T) {
	million := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 6.00, million.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.InDelta(t, 18.00, million.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.InDelta(t, 90.00, million.EstimateCost("claude-opus-4-1-20250805"), 0.001)
	assert.Equal(t, 0.0, million.EstimateCost("unknown-model"))
	assert.Equal(t, 0.0, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))
}

func TestEstimateCost_WithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     300_000,
	}
	// 0.5 + 0.5 + 0.25 + 0.03
	assert.InDelta(t, 1.28, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "summarize")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}
