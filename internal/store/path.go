package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Path addresses a value inside a tender record document. Elements are
// object keys or decimal array indexes.
type Path []string

// P builds a Path from keys (string) and array indexes (int).
func P(elems ...any) Path {
	p := make(Path, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case int:
			p = append(p, strconv.Itoa(v))
		case string:
			p = append(p, v)
		default:
			p = append(p, fmt.Sprint(v))
		}
	}
	return p
}

// Common record paths.
var (
	PathExtractedAnalysis = P("extractedAnalysis")
	PathFindRequests      = P("findRequests")
)

// FindRequestPath addresses a field of enrichment slot i.
func FindRequestPath(i int, field string) Path {
	return P("findRequests", i, field)
}

// String renders the path in dotted form for logs and errors.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Validate rejects empty paths and keys outside [A-Za-z0-9_].
func (p Path) Validate() error {
	if len(p) == 0 {
		return eris.New("store: empty path")
	}
	for _, e := range p {
		if e == "" {
			return eris.Errorf("store: empty element in path %q", p.String())
		}
		for _, r := range e {
			if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return eris.Errorf("store: invalid path element %q", e)
			}
		}
	}
	return nil
}

func isIndex(e string) bool {
	_, err := strconv.Atoi(e)
	return err == nil
}

// sqlitePath renders the path in SQLite JSON path syntax, e.g.
// $.findRequests[2].productAnalysis.
func (p Path) sqlitePath() string {
	var b strings.Builder
	b.WriteString("$")
	for _, e := range p {
		if isIndex(e) {
			b.WriteString("[" + e + "]")
			continue
		}
		b.WriteString("." + e)
	}
	return b.String()
}
