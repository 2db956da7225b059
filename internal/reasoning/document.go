package reasoning

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/tender-cli/pkg/anthropic"
)

// maxDocumentChars caps the text sent per document.
const maxDocumentChars = 100_000

var (
	blankRuns = regexp.MustCompile(`[ \t\x{00a0}]+`)
	lineRuns  = regexp.MustCompile(`\n{3,}`)
)

// loadPart turns a normalized file into a message part: PDFs go as native
// documents, markup and tabular text as titled plain-text documents.
func loadPart(path string) (anthropic.ContentPart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return anthropic.ContentPart{}, eris.Wrap(err, "reasoning: read document")
	}
	title := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return anthropic.PDFPart(data, title)
	case ".html", ".htm":
		return anthropic.DocumentTextPart(truncate(htmlText(data)), title)
	case ".txt", ".csv":
		if !utf8.Valid(data) {
			data = bytes.ToValidUTF8(data, []byte("?"))
		}
		return anthropic.DocumentTextPart(truncate(string(data)), title)
	default:
		return anthropic.ContentPart{}, eris.Errorf("reasoning: unsupported document %s", title)
	}
}

// htmlText flattens markup to readable text, dropping scripts and styles and
// keeping block boundaries as line breaks.
func htmlText(data []byte) string {
	z := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			out := blankRuns.ReplaceAllString(b.String(), " ")
			out = strings.ReplaceAll(out, " \n", "\n")
			return strings.TrimSpace(lineRuns.ReplaceAllString(out, "\n\n"))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "svg":
				skip++
			case "br", "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6", "table", "section", "article":
				b.WriteByte('\n')
			case "td", "th":
				b.WriteString(" | ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "svg":
				if skip > 0 {
					skip--
				}
			case "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxDocumentChars {
		return s
	}
	r := []rune(s)
	return string(r[:maxDocumentChars])
}
