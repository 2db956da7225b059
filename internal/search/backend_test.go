package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/pkg/jina"
	"github.com/sells-group/tender-cli/pkg/yandex"
)

type yandexStub struct {
	results []yandex.Result
	err     error
}

func (y yandexStub) Search(context.Context, string) ([]yandex.Result, error) {
	return y.results, y.err
}

func TestYandexBackend(t *testing.T) {
	b := NewYandexBackend(yandexStub{results: []yandex.Result{
		{URL: "https://shop.ru/a", Title: "A", Snippet: "sa"},
	}})
	assert.Equal(t, "yandex", b.Name())

	hits, err := b.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://shop.ru/a", hits[0].Link)
	assert.Equal(t, "yandex", hits[0].Source)
}

func TestJinaBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RU", r.URL.Query().Get("gl"))
		_ = json.NewEncoder(w).Encode(jina.SearchResponse{Code: 200, Data: []jina.SearchResult{
			{Title: "A", URL: "https://shop.ru/a", Description: "desc"},
			{Title: "B", URL: "https://shop.ru/b", Content: "first line\nsecond"},
		}})
	}))
	defer srv.Close()

	b := NewJinaBackend(jina.NewClient("k", jina.WithSearchBaseURL(srv.URL)))
	hits, err := b.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "desc", hits[0].Snippet)
	assert.Equal(t, "first line", hits[1].Snippet)
	assert.Equal(t, "jina", hits[1].Source)
}

func TestFirstLine_Truncates(t *testing.T) {
	long := strings.Repeat("я", 400)
	assert.Len(t, []rune(firstLine(long)), 300)
}
