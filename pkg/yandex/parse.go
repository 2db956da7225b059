package yandex

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// ParseHTML extracts organic results from a Yandex results page. Result
// anchors carry the organic__url class; the title sits in an organic__title
// descendant and the snippet in the enclosing serp item.
func ParseHTML(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "yandex: parse html")
	}

	var out []Result
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "organic__url") {
			href := attr(n, "href")
			if href != "" && !seen[href] {
				title := text(find(n, "organic__title"))
				if title == "" {
					title = text(n)
				}
				seen[href] = true
				out = append(out, Result{
					URL:     href,
					Title:   title,
					Snippet: text(find(serpItem(n), "organic__text")),
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClass matches a class token or a BEM modifier of it
// ("organic__title" matches "organic__title organic__title_wrapper").
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class || strings.HasPrefix(c, class+"_") {
			return true
		}
	}
	return false
}

func find(n *html.Node, class string) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if f := find(c, class); f != nil {
			return f
		}
	}
	return nil
}

func serpItem(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && (p.Data == "li" || hasClass(p, "serp-item")) {
			return p
		}
	}
	return nil
}

func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
