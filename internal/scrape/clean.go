package scrape

import (
	"bytes"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([\w-]+)`)

// toUTF8 decodes body using the charset from the Content-Type header or a
// <meta> tag. Russian sites still serve windows-1251 and koi8-r.
func toUTF8(body []byte, contentType string) []byte {
	name := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		name = params["charset"]
	}
	if name == "" {
		head := body
		if len(head) > 4096 {
			head = head[:4096]
		}
		if m := metaCharset.FindSubmatch(head); m != nil {
			name = string(m[1])
		}
	}
	if name == "" {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	if n, _ := htmlindex.Name(enc); n == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

var noiseTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Template: true,
	atom.Link:     true,
}

// cleanHTML drops scripts, styles, navigation and footers plus inline
// handlers and styles, returning the remaining markup along with the page
// title and the amount of visible text.
func cleanHTML(body []byte) (out string, title string, textLen int, err error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", 0, err
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			switch {
			case c.Type == html.CommentNode:
				n.RemoveChild(c)
			case c.Type == html.ElementNode && noiseTags[c.DataAtom]:
				n.RemoveChild(c)
			case c.Type == html.ElementNode && c.DataAtom == atom.Title:
				if title == "" && c.FirstChild != nil {
					title = strings.TrimSpace(c.FirstChild.Data)
				}
			default:
				if c.Type == html.ElementNode {
					c.Attr = keepAttrs(c.Attr)
				}
				if c.Type == html.TextNode {
					textLen += utf8.RuneCountInString(strings.TrimSpace(c.Data))
				}
				walk(c)
			}
			c = next
		}
	}
	walk(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", "", 0, err
	}
	return buf.String(), title, textLen, nil
}

func keepAttrs(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if a.Key == "style" || strings.HasPrefix(a.Key, "on") || strings.HasPrefix(a.Key, "data-") {
			continue
		}
		out = append(out, a)
	}
	return out
}
