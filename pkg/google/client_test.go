package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/resilience"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "engine-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "ноутбук 15.6 купить", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("num"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Items: []Item{
				{Title: "Ноутбук Acer", Link: "https://shop.ru/acer", Snippet: "В наличии"},
				{Title: "Ноутбук Lenovo", Link: "https://магазин.рф/lenovo", Snippet: "от 45 000 ₽"},
			},
			SearchInformation: SearchInformation{TotalResults: "1200"},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", "engine-1", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "ноутбук 15.6 купить", 10)

	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "https://shop.ru/acer", resp.Items[0].Link)
	assert.Equal(t, "от 45 000 ₽", resp.Items[1].Snippet)
	assert.Equal(t, "1200", resp.SearchInformation.TotalResults)
}

func TestSearch_NumClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("k", "cx", WithBaseURL(srv.URL))
	for _, n := range []int{0, -1, 50} {
		_, err := client.Search(context.Background(), "q", n)
		require.NoError(t, err)
	}
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"searchInformation": {"totalResults": "0"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "Nonexistent", 10)

	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("bad-key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "test query", 10)

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "test", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.True(t, resilience.IsTransient(err))
}

func TestSearch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer srv.Close()

	client := NewClient("k", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "q", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(ctx, "test", 10)

	assert.Error(t, err)
	assert.Nil(t, resp)
}
