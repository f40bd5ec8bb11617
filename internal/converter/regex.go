package converter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/bnema/rulekit/internal/models"
)

const (
	// separatorClass matches one ABP "^" separator: anything but a letter, digit, or one of _ - . %
	separatorClass = `[^a-zA-Z0-9_.%-]`
	// domainAnchorPrefix matches the scheme and any leading subdomains for "||" patterns
	domainAnchorPrefix = `^https?://([^/]+\.)?`
	// maxPatternLength caps both the source pattern and the generated url-filter
	maxPatternLength = 500
)

var (
	ErrPatternTooBroad  = errors.New("pattern matches everything")
	ErrPatternRegexLike = errors.New("pattern contains regex syntax")
	ErrPatternTooLong   = errors.New("pattern too long")
	ErrRegexTooLong     = errors.New("url-filter too long")
	ErrRegexInvalid     = errors.New("url-filter does not compile")
	ErrRegexDialect     = errors.New("url-filter uses syntax the content blocker rejects")
)

// URLFilter builds the url-filter regex for a URL rule and validates it.
func URLFilter(r models.URLRule) (string, error) {
	p := r.Pattern
	switch {
	case p == "" || p == "*" || p == "^":
		return "", ErrPatternTooBroad
	case strings.Contains(p, "(?") || strings.Contains(p, `\d`) || strings.Contains(p, `\w`):
		return "", ErrPatternRegexLike
	case len(p) > maxPatternLength:
		return "", ErrPatternTooLong
	}

	var b strings.Builder
	b.Grow(len(p) + 32)

	if r.IsDomainAnchor {
		b.WriteString(domainAnchorPrefix)
	} else if r.IsAddressStartAnchor {
		b.WriteByte('^')
	}

	b.WriteString(PatternToRegex(p))

	if r.IsAddressEndAnchor {
		b.WriteByte('$')
	}

	regex := b.String()
	if err := ValidateRegex(regex); err != nil {
		return "", err
	}
	return regex, nil
}

// PatternToRegex converts an anchor-free ABP pattern to a regex body.
// '*' becomes ".*", '^' becomes the separator class, and regex metacharacters
// other than '/' are escaped.
func PatternToRegex(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '^':
			b.WriteString(separatorClass)
		case '\\', '.', '+', '?', '{', '}', '[', ']', '(', ')', '|', '$':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// ValidateRegex checks that expr compiles as an ECMAScript regex and stays
// within the subset the content blocker engine accepts.
func ValidateRegex(expr string) error {
	if len(expr) > maxPatternLength {
		return ErrRegexTooLong
	}

	if _, err := regexp2.Compile(expr, regexp2.ECMAScript); err != nil {
		return fmt.Errorf("%w: %v", ErrRegexInvalid, err)
	}

	if issues := CheckDialect(expr); len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrRegexDialect, DescribeIssues(issues))
	}

	return nil
}
