// Package convert turns tender documentation files into formats the
// reasoning service accepts: HTML, PDF, plain text and CSV.
package convert

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnsupported is returned for files that have no conversion route.
var ErrUnsupported = eris.New("convert: unsupported file type")

// SupportedOutputs lists the extensions the reasoning service can consume.
var SupportedOutputs = []string{".html", ".htm", ".pdf", ".txt", ".csv"}

// IsSupportedOutput reports whether path has an extension from SupportedOutputs.
func IsSupportedOutput(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedOutputs {
		if ext == s {
			return true
		}
	}
	return false
}

// Options configures external converters.
type Options struct {
	AntiwordPath string
	SofficePath  string
}

// Router converts a single source file by extension.
type Router struct {
	antiword *Antiword
	soffice  *Soffice
}

// NewRouter creates a Router. Empty binary paths fall back to $PATH lookups.
func NewRouter(opts Options) *Router {
	return &Router{
		antiword: NewAntiword(opts.AntiwordPath),
		soffice:  NewSoffice(opts.SofficePath),
	}
}

// Routable reports whether src has a conversion route.
func Routable(src string) bool {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".docx", ".doc", ".xlsx", ".xls", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

// Convert writes the converted form of src into outDir using base as the
// output file stem, and returns the produced paths. The same input always
// yields the same output names.
func (r *Router) Convert(ctx context.Context, src, outDir, base string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(src))
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}

	switch ext {
	case ".docx":
		dst := filepath.Join(outDir, base+".html")
		if err := DocxToHTML(src, dst); err != nil {
			return nil, err
		}
		return []string{dst}, nil
	case ".doc":
		dst := filepath.Join(outDir, base+".txt")
		if err := r.antiword.ToText(ctx, src, dst); err != nil {
			return nil, err
		}
		return []string{dst}, nil
	case ".xlsx":
		return XLSXToCSV(src, outDir, base)
	case ".xls":
		return r.soffice.XLSToCSV(ctx, src, outDir, base)
	case ".html", ".htm", ".pdf":
		dst := filepath.Join(outDir, base+ext)
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		return []string{dst}, nil
	default:
		zap.L().Debug("convert: skipping unsupported file", zap.String("path", src))
		return nil, ErrUnsupported
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrap(err, "convert: open source")
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrap(err, "convert: create output")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return eris.Wrap(err, "convert: copy")
	}
	return eris.Wrap(out.Close(), "convert: close output")
}
