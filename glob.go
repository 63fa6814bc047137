package gizmo

import (
	"regexp"
	"strings"
)

// globRegexp converts a glob using * and ? into an anchored regular
// expression. Every other character matches literally.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// MatchGlob reports whether s matches the glob pattern.
func MatchGlob(pattern, s string) (bool, error) {
	re, err := globRegexp(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}
