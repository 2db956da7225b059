package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(attempts int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxAttempts: attempts,
		HostRate:    1000,
		HostBurst:   100,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("bundle bytes"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(1).Download(context.Background(), srv.URL+"/files.zip")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "bundle bytes", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file content here"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.zip")
	n, err := newTestFetcher(1).DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", string(data))
}

func TestDownload_NotFoundIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(1).Download(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDownload_SingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second})
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestDownload_RetriesWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(2).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(1).Download(context.Background(), "::not a url")
	require.Error(t, err)
}

func TestDownload_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestFetcher(1).Download(context.Background(), addr)
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestDownloadToFile_CreateFileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(1).DownloadToFile(context.Background(), srv.URL, "/nonexistent/dir/file.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create file")
}

func TestLimiterFor_ReusedPerHost(t *testing.T) {
	f := newTestFetcher(1)
	a := f.limiterFor("example.ru")
	b := f.limiterFor("example.ru")
	c := f.limiterFor("other.ru")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 1, f.opts.MaxAttempts)
	assert.Equal(t, 5*time.Minute, f.client.Timeout)
	assert.Equal(t, "tender-cli/1.0", f.opts.UserAgent)
}

type stubFetcher struct{ name string }

func (s stubFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}

func (s stubFetcher) DownloadToFile(context.Context, string, string) (int64, error) {
	if s.name == "ftp" {
		return 2, nil
	}
	return 1, nil
}

func TestRouter_PicksByScheme(t *testing.T) {
	r := NewRouter(stubFetcher{name: "http"}, stubFetcher{name: "ftp"})

	n, err := r.DownloadToFile(context.Background(), "https://zakupki.example/files.zip", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.DownloadToFile(context.Background(), "ftp://mirror.example/files.zip", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = r.DownloadToFile(context.Background(), "gopher://x/y", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestRouter_NilFTPDisablesScheme(t *testing.T) {
	r := NewRouter(stubFetcher{}, nil)
	_, err := r.Download(context.Background(), "ftp://mirror.example/files.zip")
	require.Error(t, err)
}
