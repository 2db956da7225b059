package reasoning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/pkg/anthropic"
)

const validExtraction = "Готово.\n```json\n" + `{
  "tender": {"name": "Поставка ноутбуков", "number": 32514850391, "price": "1 250 000,00", "currency": "RUB"},
  "customer": {"name": "ГБУ Школа 1", "inn": "7701234567"},
  "items": [
    {"name": "Ноутбук", "quantity": {"value": 10, "unit": "шт"}, "specifications": {"RAM": "16 ГБ", "Диагональ": 15.6}},
    {"name": "Мышь", "quantity": {"value": "10", "unit": "шт"}}
  ]
}` + "\n```\nКонец."

func TestParseExtraction_Valid(t *testing.T) {
	ext, err := ParseExtraction(validExtraction)
	require.NoError(t, err)
	assert.Equal(t, "Поставка ноутбуков", ext.Tender.Name)
	assert.Equal(t, "32514850391", ext.Tender.Number.String())
	price, ok := ext.Tender.Price.Float()
	require.True(t, ok)
	assert.InDelta(t, 1250000.0, price, 0.001)
	require.Len(t, ext.Items, 2)
	assert.Equal(t, "15.6", ext.Items[0].Specifications["Диагональ"].String())
	assert.Equal(t, "10", ext.Items[1].Quantity.Value.String())
}

func TestParseExtraction_Failures(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"no block", `{"tender": {}, "items": []}`, "no fenced json block"},
		{"empty text", "", "no fenced json block"},
		{"malformed", "```json\n{\"tender\": {\n```", "malformed json"},
		{"missing items", "```json\n{\"tender\": {}}\n```", "schema:"},
		{"item without name", "```json\n{\"tender\": {}, \"items\": [{\"quantity\": null}]}\n```", "schema:"},
		{"items not array", "```json\n{\"tender\": {}, \"items\": {}}\n```", "schema:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := ParseExtraction(tt.text)
			assert.Nil(t, ext)
			var perr *resilience.ExtractionParseError
			require.True(t, errors.As(err, &perr))
			assert.True(t, strings.HasPrefix(perr.Reason, tt.reason), perr.Reason)
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	def, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), def)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report: |\n  Короткий отчёт.\n"), 0o644))
	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Короткий отчёт.\n", p.Report)
	assert.Equal(t, def.Extract, p.Extract)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("report: [unclosed"), 0o644))
	_, err = LoadPrompts(path)
	assert.Error(t, err)
}

func TestDefaultPrompts_ExtractMentionsMarkers(t *testing.T) {
	p := DefaultPrompts()
	assert.Contains(t, p.Extract, "=== FILE:")
	assert.Contains(t, p.Extract, "```json")
}

func TestLoadPart(t *testing.T) {
	dir := t.TempDir()

	pdf := writeDoc(t, dir, "notice.pdf", "%PDF-1.4 body")
	part, err := loadPart(pdf)
	require.NoError(t, err)
	assert.Equal(t, anthropic.PartDocument, part.Kind)
	assert.Equal(t, "notice.pdf", part.Title)

	fake := writeDoc(t, dir, "fake.pdf", "<html>")
	_, err = loadPart(fake)
	assert.Error(t, err)

	csv := writeDoc(t, dir, "items.csv", "name,qty\nНоутбук,10\n")
	part, err = loadPart(csv)
	require.NoError(t, err)
	assert.Equal(t, anthropic.PartHTML, part.Kind)
	assert.Contains(t, part.Text, "Ноутбук,10")

	_, err = loadPart(writeDoc(t, dir, "empty.txt", "  \n"))
	assert.Error(t, err)

	_, err = loadPart(writeDoc(t, dir, "image.png", "png"))
	assert.Error(t, err)
}

func TestHTMLText(t *testing.T) {
	in := `<html><head><style>p{}</style><script>var a = 1;</script></head>
<body><h2>Характеристики</h2><table><tr><td>RAM</td><td>16&nbsp;ГБ</td></tr></table>
<p>Цена:   45 000   руб.</p></body></html>`
	out := htmlText([]byte(in))
	assert.NotContains(t, out, "var a")
	assert.NotContains(t, out, "p{}")
	assert.Contains(t, out, "Характеристики")
	assert.Contains(t, out, "| RAM | 16 ГБ")
	assert.Contains(t, out, "Цена: 45 000 руб.")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("я", maxDocumentChars+10)
	assert.Equal(t, maxDocumentChars, len([]rune(truncate(long))))
	assert.Equal(t, "short", truncate("short"))
}
