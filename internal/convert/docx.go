package convert

import (
	"archive/zip"
	"encoding/xml"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

var headingStyle = regexp.MustCompile(`(?i)^(?:heading|заголовок)\s*([1-6])$`)

// DocxToHTML renders the body of a .docx file as a simple HTML article:
// headings, paragraphs and tables are kept, images become "[image]".
func DocxToHTML(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return eris.Wrap(err, "docx: open archive")
	}
	defer r.Close() //nolint:errcheck

	var doc *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return eris.New("docx: word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return eris.Wrap(err, "docx: open document part")
	}
	defer rc.Close() //nolint:errcheck

	body, err := renderDocx(rc)
	if err != nil {
		return err
	}

	title := html.EscapeString(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	page := "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" + title +
		"</title>\n</head>\n<body>\n<article>\n" + body + "</article>\n</body>\n</html>\n"
	return eris.Wrap(os.WriteFile(dst, []byte(page), 0o644), "docx: write html")
}

type docxRenderer struct {
	out   strings.Builder
	para  strings.Builder
	style string
	depth int // table nesting
}

func renderDocx(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "docx: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var d docxRenderer
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "docx: read token")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := d.start(dec, t); err != nil {
				return "", err
			}
		case xml.EndElement:
			d.end(t)
		}
	}
	return d.out.String(), nil
}

func (d *docxRenderer) start(dec *xml.Decoder, el xml.StartElement) error {
	switch el.Name.Local {
	case "p":
		d.para.Reset()
		d.style = ""
	case "pStyle":
		d.style = attr(el, "val")
	case "t":
		var text string
		if err := dec.DecodeElement(&text, &el); err != nil {
			return eris.Wrap(err, "docx: decode text")
		}
		d.para.WriteString(html.EscapeString(text))
	case "tab":
		d.para.WriteString("\t")
	case "br", "cr":
		d.para.WriteString("<br>")
	case "drawing", "pict":
		d.para.WriteString("[image]")
		return eris.Wrap(dec.Skip(), "docx: skip image")
	case "tbl":
		d.depth++
		d.out.WriteString("<table>\n")
	case "tr":
		d.out.WriteString("<tr>")
	case "tc":
		d.out.WriteString("<td>")
	}
	return nil
}

func (d *docxRenderer) end(el xml.EndElement) {
	switch el.Name.Local {
	case "p":
		d.flush()
	case "tbl":
		d.depth--
		d.out.WriteString("</table>\n")
	case "tr":
		d.out.WriteString("</tr>\n")
	case "tc":
		d.out.WriteString("</td>")
	}
}

func (d *docxRenderer) flush() {
	text := d.para.String()
	d.para.Reset()

	if d.depth > 0 {
		if text != "" {
			d.out.WriteString("<p>" + text + "</p>")
		}
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	tag := "p"
	if strings.EqualFold(d.style, "Title") {
		tag = "h1"
	} else if m := headingStyle.FindStringSubmatch(d.style); m != nil {
		tag = "h" + m[1]
	}
	d.out.WriteString("<" + tag + ">" + text + "</" + tag + ">\n")
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
