package converter

import (
	"errors"
	"fmt"
	"strings"
)

// maxSelectorLength is exclusive: selectors this long are rejected
const maxSelectorLength = 500

var (
	ErrSelectorEmpty     = errors.New("empty selector")
	ErrSelectorTooLong   = errors.New("selector too long")
	ErrSelectorComplex   = errors.New("selector uses unsupported pseudo-class")
	ErrSelectorScriptlet = errors.New("scriptlet or html filter")
	ErrSelectorEscape    = errors.New("selector contains unescaped backslash")
)

// relationalPseudoClasses cannot be evaluated by the engine's selector matcher
var relationalPseudoClasses = []string{":has(", ":is(", ":where("}

// proceduralTokens are ABP/uBO extensions that are not CSS at all
var proceduralTokens = []string{
	":contains(", ":has-text(", ":xpath(", ":-abp-", ":matches-css(",
	":style(", ":remove(", ":upward(", ":nth-ancestor(",
	":matches-attr(", ":min-text-length(", ":watch-attr(", ":matches-path(",
}

// ValidateSelector checks that a cosmetic selector can be used in a css-display-none action.
func ValidateSelector(selector string) error {
	switch {
	case strings.TrimSpace(selector) == "":
		return ErrSelectorEmpty
	case len(selector) >= maxSelectorLength:
		return ErrSelectorTooLong
	case strings.HasPrefix(selector, "+js(") || strings.HasPrefix(selector, "^"):
		return ErrSelectorScriptlet
	}

	lower := strings.ToLower(selector)
	for _, tok := range relationalPseudoClasses {
		if strings.Contains(lower, tok) {
			return fmt.Errorf("%w: %s", ErrSelectorComplex, tok)
		}
	}
	for _, tok := range proceduralTokens {
		if strings.Contains(lower, tok) {
			return fmt.Errorf("%w: %s", ErrSelectorComplex, tok)
		}
	}

	if err := checkNotArguments(lower); err != nil {
		return err
	}

	if hasUnescapedBackslash(selector) {
		return ErrSelectorEscape
	}

	return nil
}

// checkNotArguments rejects :not() whose argument holds a pseudo-class, a space or a child combinator.
func checkNotArguments(selector string) error {
	rest := selector
	for {
		i := strings.Index(rest, ":not(")
		if i < 0 {
			return nil
		}
		rest = rest[i+len(":not("):]

		arg, ok := balancedArgument(rest)
		if !ok {
			return fmt.Errorf("%w: unbalanced :not(", ErrSelectorComplex)
		}
		if strings.ContainsAny(bareSelector(arg), ": >") {
			return fmt.Errorf("%w: complex :not(%s)", ErrSelectorComplex, arg)
		}
	}
}

// bareSelector drops attribute selectors and quoted strings, keeping the text a
// combinator or pseudo-class could appear in.
func bareSelector(s string) string {
	var b strings.Builder
	var quote byte
	brackets := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			brackets++
		case c == ']' && brackets > 0:
			brackets--
		case brackets == 0:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// balancedArgument returns the text up to the parenthesis closing an already opened one.
// Parentheses inside quoted strings are not counted.
func balancedArgument(s string) (string, bool) {
	depth := 1
	var quote byte
	for i := 0; i < len(s); i++ {
		if quote != 0 {
			if s[i] == quote {
				quote = 0
			}
			continue
		}
		switch s[i] {
		case '"', '\'':
			quote = s[i]
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], true
			}
		}
	}
	return "", false
}

// hasUnescapedBackslash reports a backslash that is not part of a "\\" pair
func hasUnescapedBackslash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\\' {
			i++
			continue
		}
		return true
	}
	return false
}
