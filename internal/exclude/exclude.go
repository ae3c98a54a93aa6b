// Package exclude compiles the configured exclusion patterns
// into a single matcher shared by the seed builder, resolver and
// materializer so a package is dropped consistently at each of those
// points. The fetcher takes no exclusion set; it works from the
// catalog the resolver has already filtered.
package exclude

import (
	"regexp"
	"strings"
)

// Set is an ordered list of glob-like patterns (only "*" is significant)
// compiled to anchored full-match regular expressions.
type Set struct {
	patterns []string
	res      []*regexp.Regexp
}

// New compiles patterns into a Set. Invalid patterns cannot occur since
// the only metacharacter recognized is "*", escaped via QuoteMeta before
// being turned back into ".*".
func New(patterns []string) Set {
	s := Set{patterns: patterns, res: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		escaped := regexp.QuoteMeta(p)
		expr := "^" + strings.ReplaceAll(escaped, `\*`, `.*`) + "$"
		s.res[i] = regexp.MustCompile(expr)
	}
	return s
}

// Matches reports whether name matches any pattern in the set.
func (s Set) Matches(name string) bool {
	for _, re := range s.res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Patterns returns the original, uncompiled pattern strings.
func (s Set) Patterns() []string { return s.patterns }
