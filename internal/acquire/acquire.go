// Package acquire downloads a tender's document bundle, unpacks it, and
// normalizes every file into a format the reasoning service accepts.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tender-cli/internal/convert"
	"github.com/sells-group/tender-cli/internal/fetcher"
	"github.com/sells-group/tender-cli/internal/metrics"
	"github.com/sells-group/tender-cli/internal/resilience"
)

const (
	originalDir  = "original"
	convertedDir = "converted"
	bundleName   = "bundle.zip"
)

var zipMagic = []byte("PK\x03\x04")

// Converter normalizes a single file into outDir.
type Converter interface {
	Convert(ctx context.Context, src, outDir, base string) ([]string, error)
}

// Options configures an Acquirer.
type Options struct {
	WorkDir            string
	ConvertConcurrency int
	MaxNesting         int
	DownloadTimeout    time.Duration
}

// Result lists the normalized files of one bundle.
type Result struct {
	NormalizedFiles []string
	WorkDir         string
}

// Option tunes a single acquisition.
type Option func(*request)

type request struct {
	nameFilter string
}

// WithNameFilter keeps only bundle members whose base name contains substr,
// compared case-insensitively.
func WithNameFilter(substr string) Option {
	return func(r *request) { r.nameFilter = strings.ToLower(substr) }
}

// Acquirer implements document acquisition and normalization.
type Acquirer struct {
	fetcher fetcher.Fetcher
	conv    Converter
	opts    Options
}

// New creates an Acquirer.
func New(f fetcher.Fetcher, conv Converter, opts Options) *Acquirer {
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(os.TempDir(), "tender-cli")
	}
	if opts.ConvertConcurrency <= 0 {
		opts.ConvertConcurrency = 4
	}
	if opts.MaxNesting <= 0 {
		opts.MaxNesting = fetcher.DefaultMaxNesting
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 5 * time.Minute
	}
	return &Acquirer{fetcher: f, conv: conv, opts: opts}
}

// WorkDirFor returns the per-tender working directory.
func (a *Acquirer) WorkDirFor(key string) string {
	return filepath.Join(a.opts.WorkDir, safeKey(key))
}

// AcquireAndNormalize downloads bundleURL, expands it under the tender's work
// directory and converts every retained file. Download and unpack failures
// return *resilience.DownloadError and leave no work directory behind.
// A bundle with nothing convertible yields an empty result.
func (a *Acquirer) AcquireAndNormalize(ctx context.Context, key, bundleURL string, opts ...Option) (*Result, error) {
	var req request
	for _, o := range opts {
		o(&req)
	}
	if strings.TrimSpace(key) == "" {
		return nil, eris.New("acquire: empty key")
	}

	log := zap.L().With(zap.String("reg_number", key))
	workDir := a.WorkDirFor(key)

	// Start from a clean tree so repeated runs produce the same files.
	if err := os.RemoveAll(workDir); err != nil {
		return nil, eris.Wrap(err, "acquire: reset work dir")
	}
	orig := filepath.Join(workDir, originalDir)
	conv := filepath.Join(workDir, convertedDir)
	for _, d := range []string{orig, conv} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, eris.Wrap(err, "acquire: create work dir")
		}
	}

	files, err := a.unpack(ctx, workDir, orig, bundleURL)
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, err
	}
	log.Info("acquire: bundle unpacked", zap.Int("files", len(files)))

	files = filterNames(files, req.nameFilter)
	stems := outputStems(orig, files)

	outputs := make([][]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.ConvertConcurrency)
	for i, src := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outputs[i] = a.convertOne(gctx, src, conv, stems[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "acquire: cancelled")
	}

	var normalized []string
	for _, out := range outputs {
		for _, p := range out {
			if convert.IsSupportedOutput(p) {
				normalized = append(normalized, p)
			}
		}
	}
	sort.Strings(normalized)

	log.Info("acquire: files normalized",
		zap.Int("input", len(files)),
		zap.Int("output", len(normalized)),
	)
	return &Result{NormalizedFiles: normalized, WorkDir: workDir}, nil
}

// convertOne never fails the batch; problems are logged and the file dropped.
func (a *Acquirer) convertOne(ctx context.Context, src, outDir, stem string) []string {
	kind := strings.ToLower(filepath.Ext(src))
	if !convert.Routable(src) {
		zap.L().Info("acquire: skipping unsupported file", zap.String("file", filepath.Base(src)))
		metrics.FilesNormalized.WithLabelValues(kind, "skipped").Inc()
		return nil
	}

	out, err := a.conv.Convert(ctx, src, outDir, stem)
	if err != nil {
		if errors.Is(err, convert.ErrUnsupported) {
			metrics.FilesNormalized.WithLabelValues(kind, "skipped").Inc()
			return nil
		}
		cerr := &resilience.ConversionError{Path: filepath.Base(src), Err: err}
		zap.L().Warn("acquire: conversion failed", zap.Error(cerr))
		metrics.FilesNormalized.WithLabelValues(kind, metrics.OutcomeError).Inc()
		return nil
	}
	metrics.FilesNormalized.WithLabelValues(kind, metrics.OutcomeOK).Inc()
	return out
}

func (a *Acquirer) unpack(ctx context.Context, workDir, orig, bundleURL string) ([]string, error) {
	dctx, cancel := context.WithTimeout(ctx, a.opts.DownloadTimeout)
	defer cancel()

	bundle := filepath.Join(workDir, bundleName)
	if _, err := a.fetcher.DownloadToFile(dctx, bundleURL, bundle); err != nil {
		derr := &resilience.DownloadError{URL: bundleURL, Err: err}
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			derr.StatusCode = se.StatusCode
		}
		return nil, derr
	}

	isZip, err := hasZipMagic(bundle)
	if err != nil {
		return nil, &resilience.DownloadError{URL: bundleURL, Err: err}
	}
	if !isZip {
		// Some platforms link a single document instead of an archive.
		dst := filepath.Join(orig, bundleFileName(bundleURL))
		if err := os.Rename(bundle, dst); err != nil {
			return nil, &resilience.DownloadError{URL: bundleURL, Err: eris.Wrap(err, "acquire: move document")}
		}
		return []string{dst}, nil
	}

	if _, err := fetcher.ExtractZIP(bundle, orig); err != nil {
		return nil, &resilience.DownloadError{URL: bundleURL, Err: err}
	}
	if err := os.Remove(bundle); err != nil {
		return nil, eris.Wrap(err, "acquire: remove bundle")
	}

	files, err := fetcher.ExtractNested(orig, a.opts.MaxNesting)
	if err != nil {
		return nil, &resilience.DownloadError{URL: bundleURL, Err: err}
	}
	return files, nil
}

// Cleanup removes a work directory. A missing directory is not an error.
func (a *Acquirer) Cleanup(workDir string) error {
	if workDir == "" {
		return nil
	}
	return eris.Wrap(os.RemoveAll(workDir), "acquire: cleanup")
}

func hasZipMagic(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, eris.Wrap(err, "acquire: open bundle")
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, eris.Wrap(err, "acquire: read bundle")
	}
	return bytes.Equal(head[:n], zipMagic), nil
}

func bundleFileName(rawURL string) string {
	name := "document"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			name = b
		}
	}
	return name
}

func filterNames(files []string, substr string) []string {
	if substr == "" {
		return files
	}
	var out []string
	for _, f := range files {
		if strings.Contains(strings.ToLower(filepath.Base(f)), substr) {
			out = append(out, f)
		}
	}
	return out
}

// outputStems assigns every file a deterministic output stem. Files whose
// base names collide are disambiguated with their relative directory.
func outputStems(root string, files []string) []string {
	stem := func(p string) string {
		b := filepath.Base(p)
		return strings.TrimSuffix(b, filepath.Ext(b))
	}
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[strings.ToLower(stem(f))]++
	}

	out := make([]string, len(files))
	for i, f := range files {
		s := stem(f)
		if counts[strings.ToLower(s)] > 1 {
			if rel, err := filepath.Rel(root, f); err == nil {
				rel = strings.TrimSuffix(rel, filepath.Ext(rel))
				s = strings.ReplaceAll(filepath.ToSlash(rel), "/", "_")
			}
		}
		out[i] = s
	}
	return out
}

func safeKey(key string) string {
	key = strings.TrimSpace(key)
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return r.Replace(key)
}
