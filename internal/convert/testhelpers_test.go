package convert

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Техническое задание</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Поставка бумаги </w:t></w:r><w:r><w:t>A4 &amp; A3</w:t></w:r></w:p>
<w:p/>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Наименование</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Кол-во</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Бумага</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>100</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:drawing><wp:inline xmlns:wp="urn:wp"><w:t>hidden</w:t></wp:inline></w:drawing></w:r></w:p>
</w:body>
</w:document>`

func writeDocx(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	if documentXML != "" {
		fw, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = fw.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	fw, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`<Types/>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func writeXLSX(t *testing.T, dir, name string, sheets []string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, v := range rowData {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}
