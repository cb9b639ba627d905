package expr

import (
	"regexp"
)

var (
	varPattern = regexp.MustCompile(`\$[a-zA-Z_]\w*`)

	andPattern = regexp.MustCompile(`(?i)\band\b`)
	orPattern  = regexp.MustCompile(`(?i)\bor\b`)
	notPattern = regexp.MustCompile(`(?i)\bnot\b`)

	eqLiteralPattern  = regexp.MustCompile(`(\w+)\s*==\s*"([^"]*)"`)
	neqLiteralPattern = regexp.MustCompile(`(\w+)\s*!=\s*"([^"]*)"`)
)

// ResolveVars replaces every $name in s with the display text of its bound
// value. Unbound references are left as written, dollar sign included.
func ResolveVars(s string, env Lookup) string {
	if env == nil {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := env.Lookup(match[1:]); ok {
			return v.String()
		}
		return match
	})
}

// Normalize rewrites the word operators and, or, not (any case) to
// &&, ||, ! and turns comparisons of a bare word with a quoted literal into
// strict comparisons.
func Normalize(s string) string {
	s = andPattern.ReplaceAllString(s, "&&")
	s = orPattern.ReplaceAllString(s, "||")
	s = notPattern.ReplaceAllString(s, "!")
	s = eqLiteralPattern.ReplaceAllString(s, `$1 === "$2"`)
	s = neqLiteralPattern.ReplaceAllString(s, `$1 !== "$2"`)
	return s
}
