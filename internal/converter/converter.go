package converter

import (
	"errors"
	"strings"

	"github.com/bnema/rulekit/internal/models"
)

// Version identifies the conversion logic. Bump it whenever output for the same
// input can change, so persisted rule sets are recompiled.
const Version = 3

// DefaultMaxRules is the content blocker's rule budget
const DefaultMaxRules = 50000

// Stats tracks conversion statistics
type Stats struct {
	TotalConverted int
	URLConverted   int
	CSSConverted   int
	Comments       int
	Unsupported    int
	URLFailures    int
	CSSFailures    int
	Truncated      bool
	SkipReasons    map[string]int
}

// Skipped is the number of actionable filters that produced no rule.
func (s Stats) Skipped() int {
	return s.URLFailures + s.CSSFailures
}

// Skip reason constants
const (
	SkipPatternTooBroad   = "pattern-too-broad"
	SkipPatternRegexLike  = "pattern-looks-like-regex"
	SkipPatternTooLong    = "pattern-too-long"
	SkipRegexTooLong      = "regex-too-long"
	SkipRegexInvalid      = "invalid-regex"
	SkipRegexDialect      = "regex-unsupported-by-engine"
	SkipResourceUnmapped  = "resource-type-unmapped"
	SkipSelectorEmpty     = "empty-selector"
	SkipSelectorTooLong   = "selector-too-long"
	SkipSelectorComplex   = "selector-unsupported-pseudo-class"
	SkipSelectorScriptlet = "scriptlet-or-html-filter"
	SkipSelectorEscape    = "selector-unescaped-backslash"
)

// Convert transforms parsed filters into content rules, emitting at most maxRules.
// A maxRules of zero or less uses DefaultMaxRules.
func Convert(filters []models.Filter, maxRules int) ([]models.ContentRule, Stats) {
	if maxRules <= 0 {
		maxRules = DefaultMaxRules
	}

	stats := Stats{SkipReasons: make(map[string]int)}
	var rules []models.ContentRule

	for _, f := range filters {
		switch f.(type) {
		case models.Comment:
			stats.Comments++
			continue
		case models.Unsupported:
			stats.Unsupported++
			continue
		}

		if len(rules) >= maxRules {
			stats.Truncated = true
			break
		}

		switch f := f.(type) {
		case models.URLBlock:
			rule, err := convertURL(f.Rule, models.ActionBlock)
			if !stats.record(err, &stats.URLFailures, &stats.URLConverted) {
				continue
			}
			rules = append(rules, rule)
		case models.URLException:
			rule, err := convertURL(f.Rule, models.ActionIgnorePreviousRule)
			if !stats.record(err, &stats.URLFailures, &stats.URLConverted) {
				continue
			}
			rules = append(rules, rule)
		case models.CSSHide:
			rule, err := convertCSS(f.Rule, false)
			if !stats.record(err, &stats.CSSFailures, &stats.CSSConverted) {
				continue
			}
			rules = append(rules, rule)
		case models.CSSException:
			rule, err := convertCSS(f.Rule, true)
			if !stats.record(err, &stats.CSSFailures, &stats.CSSConverted) {
				continue
			}
			rules = append(rules, rule)
		}
	}

	stats.TotalConverted = len(rules)
	return rules, stats
}

// record counts one conversion outcome and reports whether it succeeded
func (s *Stats) record(err error, failures, converted *int) bool {
	if err != nil {
		*failures++
		s.SkipReasons[skipReason(err)]++
		return false
	}
	*converted++
	return true
}

var errResourceUnmapped = errors.New("no declared resource type maps to a rule token")

// convertURL builds a network rule
func convertURL(r models.URLRule, action string) (models.ContentRule, error) {
	regex, err := URLFilter(r)
	if err != nil {
		return models.ContentRule{}, err
	}

	rule := models.ContentRule{
		Trigger: models.Trigger{URLFilter: regex},
		Action:  models.Action{Type: action},
	}

	if r.MatchCase {
		t := true
		rule.Trigger.URLFilterIsCaseSensitive = &t
	}

	if !r.ResourceTypes.IsEmpty() {
		tokens := resourceTokens(r.ResourceTypes)
		if len(tokens) == 0 {
			return models.ContentRule{}, errResourceUnmapped
		}
		rule.Trigger.ResourceType = tokens
	}

	switch r.LoadType {
	case models.LoadThirdParty:
		rule.Trigger.LoadType = []string{models.LoadTokenThirdParty}
	case models.LoadFirstParty:
		rule.Trigger.LoadType = []string{models.LoadTokenFirstParty}
	}

	rule.Trigger.IfDomain = normalizeDomains(r.IncludeDomains)
	rule.Trigger.UnlessDomain = normalizeDomains(r.ExcludeDomains)

	return rule, nil
}

// convertCSS builds a cosmetic rule
func convertCSS(r models.SelectorRule, isException bool) (models.ContentRule, error) {
	if err := ValidateSelector(r.Selector); err != nil {
		return models.ContentRule{}, err
	}

	rule := models.ContentRule{
		Trigger: models.Trigger{
			URLFilter:    models.MatchAllURLs,
			IfDomain:     normalizeDomains(r.IncludeDomains),
			UnlessDomain: normalizeDomains(r.ExcludeDomains),
		},
		Action: models.Action{
			Type:     models.ActionCSSDisplayNone,
			Selector: r.Selector,
		},
	}

	if isException {
		rule.Action = models.Action{Type: models.ActionIgnorePreviousRule}
	}

	return rule, nil
}

// resourceTokens maps resource types to rule tokens, dropping duplicates and unmapped types
func resourceTokens(set models.ResourceTypes) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, t := range set.Types() {
		tok := resourceToken(t)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

func resourceToken(t models.ResourceType) string {
	switch t {
	case models.ResourceScript:
		return models.TokenScript
	case models.ResourceImage:
		return models.TokenImage
	case models.ResourceStylesheet:
		return models.TokenStyleSheet
	case models.ResourceFont:
		return models.TokenFont
	case models.ResourceMedia:
		return models.TokenMedia
	case models.ResourceXMLHTTPRequest, models.ResourceOther:
		return models.TokenRaw
	case models.ResourceDocument, models.ResourceSubdocument:
		return models.TokenDocument
	case models.ResourcePopup:
		return models.TokenPopup
	}
	// websocket has no token
	return ""
}

// normalizeDomains lowercases and adds the * prefix; nil for an empty list
func normalizeDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	result := make([]string, 0, len(domains))
	for _, d := range domains {
		result = append(result, normalizeDomain(d))
	}
	return result
}

// normalizeDomain ensures the domain matches itself and its subdomains
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if !strings.HasPrefix(d, "*") {
		return "*" + d
	}
	return d
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrPatternTooBroad):
		return SkipPatternTooBroad
	case errors.Is(err, ErrPatternRegexLike):
		return SkipPatternRegexLike
	case errors.Is(err, ErrPatternTooLong):
		return SkipPatternTooLong
	case errors.Is(err, ErrRegexTooLong):
		return SkipRegexTooLong
	case errors.Is(err, ErrRegexDialect):
		return SkipRegexDialect
	case errors.Is(err, ErrRegexInvalid):
		return SkipRegexInvalid
	case errors.Is(err, errResourceUnmapped):
		return SkipResourceUnmapped
	case errors.Is(err, ErrSelectorEmpty):
		return SkipSelectorEmpty
	case errors.Is(err, ErrSelectorTooLong):
		return SkipSelectorTooLong
	case errors.Is(err, ErrSelectorScriptlet):
		return SkipSelectorScriptlet
	case errors.Is(err, ErrSelectorEscape):
		return SkipSelectorEscape
	case errors.Is(err, ErrSelectorComplex):
		return SkipSelectorComplex
	default:
		return err.Error()
	}
}
