package query

import "regexp"

// User-supplied patterns are rejected statically before compilation when they
// have a catastrophic-backtracking shape. Rejected and uncompilable patterns
// match nothing; they never raise.

const regexEvalLimit = 1000

var (
	// A group containing a quantifier or alternation, itself quantified:
	// (a+)+, (a|a)+, (a|ab)*
	nestedQuantifierRe = regexp.MustCompile(`\([^()]*(?:[+*]|\|)[^()]*\)[+*{]`)
	// Two adjacent unbounded quantifiers on wildcard-ish tokens:
	// \d+\d+, .+.+
	adjacentQuantifierRe = regexp.MustCompile(`(?:(?:\\[dswDSW]|\[[^\]]*\]|\.)[+*]){2}`)
)

// riskyPattern reports whether the pattern has a known ReDoS shape.
func riskyPattern(pattern string) bool {
	return nestedQuantifierRe.MatchString(pattern) || adjacentQuantifierRe.MatchString(pattern)
}

// matchRegex evaluates a user-supplied pattern case-insensitively against at
// most the first regexEvalLimit characters of value.
func matchRegex(value, pattern string) bool {
	if pattern == "" || riskyPattern(pattern) {
		return false
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	if len(value) > regexEvalLimit {
		value = value[:regexEvalLimit]
	}
	return re.MatchString(value)
}
