package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"file1.txt": "content one",
		"file2.txt": "content two",
		"file3.csv": "a,b,c",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	// Verify file contents
	for _, path := range extracted {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "file1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content one", string(data))

	data, err = os.ReadFile(filepath.Join(destDir, "file2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content two", string(data))
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	// Create a ZIP with a malicious path
	zipPath := filepath.Join(t.TempDir(), "malicious.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	fw, err := w.Create("../../../etc/passwd")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("malicious")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	_, err = ExtractZIP(zipPath, destDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_WithSubdirectory(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "nested.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)

	// Add a directory entry
	_, err = w.Create("subdir/")
	require.NoError(t, err)

	// Add a file in the subdirectory
	fw, err := w.Create("subdir/data.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("nested content")) //nolint:errcheck

	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	// Only the file should be in extracted (directories return empty string)
	assert.Len(t, extracted, 1)

	data, err := os.ReadFile(filepath.Join(destDir, "subdir", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested content", string(data))
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	// Create a file that is not a ZIP
	path := filepath.Join(t.TempDir(), "notazip.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	destDir := t.TempDir()
	_, err := ExtractZIP(path, destDir)
	require.Error(t, err)
}

func writeZIP(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inner.zip")
	writeZIP(t, path, files)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestExtractNested_TwoLevels(t *testing.T) {
	root := t.TempDir()
	inner := zipBytes(t, map[string][]byte{"spec.pdf": []byte("%PDF-1.4")})
	middle := zipBytes(t, map[string][]byte{"inner.zip": inner, "note.txt": []byte("n")})
	writeZIP(t, filepath.Join(root, "bundle", "docs.zip"), map[string][]byte{"deep.zip": middle})

	files, err := ExtractNested(root, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "bundle", "docs", "deep", "inner", "spec.pdf"),
		filepath.Join(root, "bundle", "docs", "deep", "note.txt"),
	}, files)

	for _, f := range files {
		assert.NotEqual(t, ".zip", filepath.Ext(f))
	}
	_, err = os.Stat(filepath.Join(root, "bundle", "docs.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractNested_NoArchives(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.html"), []byte("<p>x</p>"), 0o644))

	files, err := ExtractNested(root, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.html")}, files)
}

func TestExtractNested_DepthExceeded(t *testing.T) {
	root := t.TempDir()
	payload := zipBytes(t, map[string][]byte{"x.txt": []byte("x")})
	for range 3 {
		payload = zipBytes(t, map[string][]byte{"level.zip": payload})
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.zip"), payload, 0o644))

	_, err := ExtractNested(root, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting deeper")
}

func TestExtractNested_CorruptArchiveSkipped(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.zip"), []byte("not a zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "contract.pdf"), []byte("%PDF-1.4"), 0o644))
	writeZIP(t, filepath.Join(root, "specs.zip"), map[string][]byte{
		"spec.html": []byte("<p>ТЗ</p>"),
		"bad.zip":   []byte("PK\x03\x04 truncated"),
	})

	files, err := ExtractNested(root, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "contract.pdf"),
		filepath.Join(root, "specs", "spec.html"),
	}, files)
	_, err = os.Stat(filepath.Join(root, "broken.zip"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "broken"))
	assert.True(t, os.IsNotExist(err))
}

func TestSiblingDir_AvoidsFileClash(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs"), []byte("plain file"), 0o644))

	assert.Equal(t, filepath.Join(root, "docs_1"), siblingDir(filepath.Join(root, "docs.zip")))
	assert.Equal(t, filepath.Join(root, "other"), siblingDir(filepath.Join(root, "other.zip")))
}
