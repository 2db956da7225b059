// Package fetcher downloads tender document bundles over HTTP(S) or FTP and
// unpacks the ZIP archives they usually arrive in.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher retrieves a remote bundle.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error)
}

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Router picks the HTTP or FTP fetcher by URL scheme.
type Router struct {
	http Fetcher
	ftp  Fetcher
}

// NewRouter returns a Router. A nil ftp fetcher disables ftp:// URLs.
func NewRouter(httpFetcher, ftpFetcher Fetcher) *Router {
	return &Router{http: httpFetcher, ftp: ftpFetcher}
}

func (r *Router) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if r.http != nil {
			return r.http, nil
		}
	case "ftp":
		if r.ftp != nil {
			return r.ftp, nil
		}
	}
	return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := r.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile implements Fetcher.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := r.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// copyToFile drains body into a newly created file at path.
func copyToFile(body io.ReadCloser, path string) (int64, error) {
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
