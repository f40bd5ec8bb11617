package converter

// Content blocker regex constraints
//
// The engine accepts a strict subset of JavaScript regular expressions:
// . [a-z] [^a-z] () * + ? and ^/$ anchors at the pattern edges, plus escaped literals.
//
// Rejected:
// - \w \W \d \D \s \S shorthand classes
// - \b \B word boundaries
// - {n} {n,} {n,m} quantifiers
// - | outside a character class
// - lookahead and lookbehind, named groups, \p{...}
// - non-ASCII characters

import (
	"regexp"
	"strings"
)

var (
	reNumericQuantifier = regexp.MustCompile(`\{[0-9]+(,[0-9]*)?\}`)
	reNonASCII          = regexp.MustCompile(`[^\x00-\x7F]`)
)

// DialectIssue describes one construct the engine would reject
type DialectIssue struct {
	Construct string
	Issue     string
}

var unsupportedConstructs = []DialectIssue{
	{`(?<!`, "negative lookbehind"},
	{`(?<=`, "positive lookbehind"},
	{`(?=`, "positive lookahead"},
	{`(?!`, "negative lookahead"},
	{`(?P<`, "named group"},
	{`(?<`, "named group"},
	{`\p{`, "unicode property"},
	{`\P{`, "unicode property"},
}

var shorthandClasses = []string{`\w`, `\W`, `\d`, `\D`, `\s`, `\S`, `\b`, `\B`}

// CheckDialect lists the constructs in expr that the engine does not support
func CheckDialect(expr string) []DialectIssue {
	var issues []DialectIssue

	for _, sc := range shorthandClasses {
		if containsUnescaped(expr, sc) {
			issues = append(issues, DialectIssue{Construct: sc, Issue: "shorthand class " + sc})
		}
	}

	for _, m := range reNumericQuantifier.FindAllStringIndex(expr, -1) {
		if !isEscaped(expr, m[0]) {
			issues = append(issues, DialectIssue{Construct: expr[m[0]:m[1]], Issue: "numeric quantifier"})
		}
	}

	if containsDisjunction(expr) {
		issues = append(issues, DialectIssue{Construct: "|", Issue: "disjunction outside character class"})
	}

	if reNonASCII.MatchString(expr) {
		issues = append(issues, DialectIssue{Issue: "non-ASCII characters"})
	}

	for _, uc := range unsupportedConstructs {
		if containsUnescaped(expr, uc.Construct) {
			issues = append(issues, uc)
		}
	}

	return issues
}

// DescribeIssues returns a human-readable description of all issues
func DescribeIssues(issues []DialectIssue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, issue.Issue)
	}
	return strings.Join(parts, ", ")
}

// containsDisjunction checks if a regex contains | outside of character classes
func containsDisjunction(pattern string) bool {
	inCharClass := false
	escaped := false

	for _, ch := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '[' && !inCharClass:
			inCharClass = true
		case ch == ']' && inCharClass:
			inCharClass = false
		case ch == '|' && !inCharClass:
			return true
		}
	}
	return false
}

// containsUnescaped reports whether sub occurs in s at a position not preceded
// by an escaping backslash.
func containsUnescaped(s, sub string) bool {
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return false
		}
		if !isEscaped(s, off+i) {
			return true
		}
		off += i + 1
	}
}

// isEscaped reports whether s[i] is preceded by an odd number of backslashes
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
