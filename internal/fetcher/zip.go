package fetcher

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultMaxNesting bounds how many archive levels ExtractNested unpacks.
const DefaultMaxNesting = 8

// ExtractZIP extracts all files from a ZIP archive to the destination directory.
// Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

// ExtractNested expands every .zip found under root into a sibling directory
// named after the archive and deletes the archive, repeating until no archive
// is left. An archive that cannot be read is logged and dropped together with
// anything partially extracted from it. It returns the resulting regular
// files in lexical order.
func ExtractNested(root string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxNesting
	}

	for depth := 0; ; depth++ {
		archives, err := findArchives(root)
		if err != nil {
			return nil, err
		}
		if len(archives) == 0 {
			break
		}
		if depth >= maxDepth {
			return nil, eris.Errorf("zip: nesting deeper than %d levels", maxDepth)
		}
		for _, a := range archives {
			dest := siblingDir(a)
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, eris.Wrap(err, "zip: create nested directory")
			}
			if _, err := ExtractZIP(a, dest); err != nil {
				zap.L().Warn("zip: skipping unreadable nested archive",
					zap.String("archive", filepath.Base(a)),
					zap.Error(err),
				)
				if err := os.RemoveAll(dest); err != nil {
					return nil, eris.Wrap(err, "zip: remove partial extraction")
				}
			}
			if err := os.Remove(a); err != nil {
				return nil, eris.Wrap(err, "zip: remove nested archive")
			}
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "zip: walk extracted tree")
	}
	sort.Strings(files)
	return files, nil
}

func findArchives(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".zip") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "zip: scan for archives")
	}
	return out, nil
}

// siblingDir names the expansion directory of an archive. A clash with an
// existing regular file gets a numeric suffix.
func siblingDir(archive string) string {
	base := strings.TrimSuffix(archive, filepath.Ext(archive))
	dir := base
	for i := 1; ; i++ {
		info, err := os.Stat(dir)
		if err != nil || info.IsDir() {
			return dir
		}
		dir = base + "_" + strconv.Itoa(i)
	}
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
