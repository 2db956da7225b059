package convert

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Antiword extracts text from legacy .doc files using the antiword CLI.
// Tables and images are flattened; the result is lossy.
type Antiword struct {
	binPath string
}

// NewAntiword creates an Antiword extractor. If binPath is empty, "antiword" is used.
func NewAntiword(binPath string) *Antiword {
	if binPath == "" {
		binPath = "antiword"
	}
	return &Antiword{binPath: binPath}
}

// ToText runs antiword with UTF-8 output and writes the text to dst.
func (a *Antiword) ToText(ctx context.Context, src, dst string) error {
	out, err := run(ctx, a.binPath, "-m", "UTF-8.txt", "-w", "0", src)
	if err != nil {
		return eris.Wrapf(err, "convert: antiword failed for %s", filepath.Base(src))
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return eris.Errorf("convert: antiword produced no text for %s", filepath.Base(src))
	}
	return eris.Wrap(os.WriteFile(dst, out, 0o644), "convert: write text")
}

// Soffice drives a headless LibreOffice for legacy spreadsheet formats.
type Soffice struct {
	binPath string
}

// NewSoffice creates a Soffice converter. If binPath is empty, "soffice" is used.
func NewSoffice(binPath string) *Soffice {
	if binPath == "" {
		binPath = "soffice"
	}
	return &Soffice{binPath: binPath}
}

// XLSToCSV re-saves an .xls workbook as .xlsx in a scratch directory and
// then writes one CSV per sheet like XLSXToCSV.
func (s *Soffice) XLSToCSV(ctx context.Context, src, outDir, base string) ([]string, error) {
	tmp, err := os.MkdirTemp("", "xls-*")
	if err != nil {
		return nil, eris.Wrap(err, "convert: scratch dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	// A private profile dir lets several conversions run side by side.
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(tmp, "profile"))
	if _, err := run(ctx, s.binPath, profile, "--headless", "--convert-to", "xlsx", "--outdir", tmp, src); err != nil {
		return nil, eris.Wrapf(err, "convert: soffice failed for %s", filepath.Base(src))
	}

	converted := filepath.Join(tmp, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".xlsx")
	if _, err := os.Stat(converted); err != nil {
		return nil, eris.Errorf("convert: soffice produced no workbook for %s", filepath.Base(src))
	}
	return XLSXToCSV(converted, outDir, base)
}

func run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "%s: %s", filepath.Base(bin), strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
