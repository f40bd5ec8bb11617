package parser

import (
	"strings"

	"github.com/bnema/rulekit/internal/models"
)

// optionKeywords are the prefixes that mark a "$..." suffix as an options string
// rather than part of the URL (e.g. "$1" in a price path).
var optionKeywords = append([]string{
	"first-party", "third-party", "3p", "1p",
	"domain=", "match-case",
}, models.ResourceTypeKeywords()...)

// looksLikeOptions reports whether the text after the last '$' is an options string.
// A pattern that really ends in "$document" is still treated as options; lists rely on that.
func looksLikeOptions(s string) bool {
	if strings.Contains(s, ",") {
		return true
	}
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "~")
	for _, kw := range optionKeywords {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}

// applyOptions parses a comma separated options string into rule.
// Unknown options are ignored.
func applyOptions(rule *models.URLRule, s string) {
	for _, token := range strings.Split(s, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}

		negated := false
		if rest, ok := strings.CutPrefix(token, "~"); ok {
			negated = true
			token = rest
		}

		switch {
		case token == "third-party" || token == "3p":
			rule.LoadType = models.LoadThirdParty
			if negated {
				rule.LoadType = models.LoadFirstParty
			}
		case token == "first-party" || token == "1p":
			rule.LoadType = models.LoadFirstParty
			if negated {
				rule.LoadType = models.LoadThirdParty
			}
		case token == "match-case":
			rule.MatchCase = !negated
		case strings.HasPrefix(token, "domain="):
			include, exclude := splitDomains(token[len("domain="):], "|")
			rule.IncludeDomains = append(rule.IncludeDomains, include...)
			rule.ExcludeDomains = append(rule.ExcludeDomains, exclude...)
		default:
			if rt, ok := models.ParseResourceType(token); ok {
				rule.ResourceTypes = toggleResourceType(rule.ResourceTypes, rt, negated)
			}
		}
	}
}

// toggleResourceType adds rt, or removes it when negated.
// Negating into an empty set starts from every type, so "~image" means everything but images.
func toggleResourceType(set models.ResourceTypes, rt models.ResourceType, negated bool) models.ResourceTypes {
	if !negated {
		return set.With(rt)
	}
	if set.IsEmpty() {
		set = models.AllResourceTypes
	}
	return set.Without(rt)
}
