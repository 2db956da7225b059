package search

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tender-cli/internal/model"
)

// Rules decides which search hits are worth fetching. Matching is a
// case-insensitive substring test on the link.
type Rules struct {
	// Exclude drops a hit whose link contains any entry.
	Exclude []string `yaml:"exclude"`
	// RequireAny keeps only hits whose link contains at least one entry.
	// Empty disables the check.
	RequireAny []string `yaml:"require_any"`
}

// DefaultRules skips search engines, marketplaces and document links, and
// keeps Russian-zone sites only.
func DefaultRules() Rules {
	return Rules{
		Exclude: []string{
			"yandex.",
			"avito",
			"ozon",
			"wildberries",
			"aliexpress",
			".pdf",
			".xlsx",
			".xls",
		},
		RequireAny: []string{".ru", ".рф"},
	}
}

// LoadRules reads rules from a YAML file. An empty path returns DefaultRules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrap(err, "search: read rules file")
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, eris.Wrap(err, "search: parse rules file")
	}
	return r, nil
}

// Filter applies Rules to search hits.
type Filter struct {
	exclude    []string
	requireAny []string
}

// NewFilter compiles rules into a Filter.
func NewFilter(r Rules) *Filter {
	return &Filter{exclude: lower(r.Exclude), requireAny: lower(r.RequireAny)}
}

// Allow reports whether link passes the rules.
func (f *Filter) Allow(link string) bool {
	l := strings.ToLower(link)
	if l == "" {
		return false
	}
	for _, e := range f.exclude {
		if strings.Contains(l, e) {
			return false
		}
	}
	if len(f.requireAny) == 0 {
		return true
	}
	for _, r := range f.requireAny {
		if strings.Contains(l, r) {
			return true
		}
	}
	return false
}

// Apply returns the hits that pass, preserving order.
func (f *Filter) Apply(hits []model.SearchHit) []model.SearchHit {
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		if f.Allow(h.Link) {
			out = append(out, h)
		}
	}
	return out
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
