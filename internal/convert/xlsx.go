package convert

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXToCSV writes one CSV per sheet into outDir. A single-sheet workbook
// becomes {base}.csv; several sheets become {base}_{sheet}.csv, with a
// numeric suffix when two sheet names map to the same file.
func XLSXToCSV(src, outDir, base string) ([]string, error) {
	f, err := xlsx.OpenFile(src)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", filepath.Base(src))
	}

	var out []string
	used := make(map[string]bool)
	for _, sheet := range f.Sheets {
		name := base + ".csv"
		if len(f.Sheets) > 1 {
			name = uniqueName(base+"_"+sheetFileName(sheet.Name), ".csv", used)
		}
		dst := filepath.Join(outDir, name)
		if err := writeSheet(sheet, dst); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func writeSheet(sheet *xlsx.Sheet, dst string) error {
	file, err := os.Create(dst)
	if err != nil {
		return eris.Wrap(err, "xlsx: create csv")
	}
	defer file.Close() //nolint:errcheck

	w := csv.NewWriter(file)
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if err := w.Write(rowToStrings(row)); err != nil {
			return eris.Wrap(err, "xlsx: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "xlsx: flush csv")
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.String()
		}
	}
	return cells
}

var sheetNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "*", "_", "?", "_")

func sheetFileName(name string) string {
	name = sheetNameReplacer.Replace(strings.TrimSpace(name))
	if name == "" {
		return "sheet"
	}
	return name
}

// uniqueName returns stem+ext, or stem_N+ext for the first N that has not
// been handed out yet. Names are compared case-insensitively.
func uniqueName(stem, ext string, used map[string]bool) string {
	name := stem + ext
	for i := 2; used[strings.ToLower(name)]; i++ {
		name = stem + "_" + strconv.Itoa(i) + ext
	}
	used[strings.ToLower(name)] = true
	return name
}
