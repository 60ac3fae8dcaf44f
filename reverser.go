package bserve

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Reverser keeps track of named patterns and  allows building URLS.
type Reverser struct {
	pats map[string]string
}

// NewReverser inits the reverser.
func NewReverser() *Reverser {
	return &Reverser{make(map[string]string)}
}

// Reverse reverses the named pattern into a url. Exact patterns take no values, values for subtree patterns
// are escaped and appended as path segments.
func (r Reverser) Reverse(name string, vals ...string) (string, error) {
	pat, ok := r.pats[name]
	if !ok {
		return "", fmt.Errorf("no pattern named: %q, got: %v", name, lo.Keys(r.pats)) //nolint:goerr113
	}

	if !strings.HasSuffix(pat, "/") {
		if len(vals) > 0 {
			return "", errors.Newf("failed to build: pattern %q is exact but got %d value(s)", pat, len(vals))
		}

		return pat, nil
	}

	return pat + strings.Join(lo.Map(vals, func(v string, _ int) string {
		return url.PathEscape(v)
	}), "/"), nil
}

// Named is a convenience method that panics if naming the pattern fails.
func (r Reverser) Named(name, str string) string {
	str, err := r.NamedPattern(name, str)
	if err != nil {
		panic("bserve: " + err.Error())
	}

	return str
}

// NamedPattern records 's' under the name while returning it as well.
func (r Reverser) NamedPattern(name, str string) (string, error) {
	if _, exists := r.pats[name]; exists {
		return str, fmt.Errorf("pattern with name %q already exists", name) //nolint:goerr113
	}

	if str == "" {
		return str, ErrInvalidPattern
	}

	r.pats[name] = str

	return str, nil
}
