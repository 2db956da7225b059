package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip shop pages that never describe a product:
// carts, checkouts and account areas.
var defaultExcludePatterns = []string{
	"/cart/*",
	"/basket/*",
	"/checkout/*",
	"/order/*",
	"/login/*",
	"/auth/*",
	"/personal/*",
	"/compare/*",
}

// PathMatcher rejects URLs whose path matches a glob. A trailing "/*"
// covers the whole subtree, so "/cart/*" also rejects "/cart" and
// "/cart/a/b".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/cart/*", "/*.zip").
// An empty list selects the shop defaults.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns, lowercased.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL should not be fetched. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSubtree(pattern, p) {
			return true
		}
	}
	return false
}

func matchSubtree(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	dir, ok := strings.CutSuffix(pattern, "/*")
	if !ok {
		return false
	}
	return urlPath == dir || strings.HasPrefix(urlPath, dir+"/")
}
