package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/rulekit/internal/models"
)

// maxLineSize bounds a single filter line read through Parse.
const maxLineSize = 1 << 20

// Stats summarizes a parsed list
type Stats struct {
	Total        int
	URLBlock     int
	URLException int
	CSSHide      int
	CSSException int
	Comments     int
	Unsupported  int
}

// Parse reads filter content and returns one Filter per non-blank line.
// The only error is an I/O or line-length failure from r.
func Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if f, ok := parseRaw(scanner.Text()); ok {
			filters = append(filters, f)
		}
	}

	return filters, scanner.Err()
}

// ParseString parses an in-memory list. It never fails.
func ParseString(text string) []models.Filter {
	var filters []models.Filter
	for line := range strings.Lines(text) {
		if f, ok := parseRaw(line); ok {
			filters = append(filters, f)
		}
	}
	return filters
}

func parseRaw(raw string) (models.Filter, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil, false
	}
	return ParseLine(line), true
}

// ParseLine parses a single trimmed, non-empty filter line
func ParseLine(line string) models.Filter {
	// Comments
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[Adblock") {
		return models.Comment{Text: line}
	}

	// Cosmetic exception filters
	if idx := strings.Index(line, "#@#"); idx != -1 {
		rule, ok := parseCosmetic(line, idx, len("#@#"))
		if !ok {
			return models.Unsupported{Raw: line}
		}
		return models.CSSException{Rule: rule}
	}

	// Cosmetic filters
	if idx := strings.Index(line, "##"); idx != -1 {
		rule, ok := parseCosmetic(line, idx, len("##"))
		if !ok {
			return models.Unsupported{Raw: line}
		}
		return models.CSSHide{Rule: rule}
	}

	// Extended and procedural cosmetic syntax
	if strings.Contains(line, "#?#") || strings.Contains(line, "#$#") || strings.Contains(line, "#%#") {
		return models.Unsupported{Raw: line}
	}

	// Exception rules (allowlist)
	if rest, ok := strings.CutPrefix(line, "@@"); ok {
		rule, ok := parseNetwork(rest)
		if !ok {
			return models.Unsupported{Raw: line}
		}
		return models.URLException{Rule: rule}
	}

	rule, ok := parseNetwork(line)
	if !ok {
		return models.Unsupported{Raw: line}
	}
	return models.URLBlock{Rule: rule}
}

// parseCosmetic splits "domains<sep>selector"
func parseCosmetic(line string, sepIdx, sepLen int) (models.SelectorRule, bool) {
	selector := strings.TrimSpace(line[sepIdx+sepLen:])
	if selector == "" {
		return models.SelectorRule{}, false
	}

	include, exclude := splitDomains(line[:sepIdx], ",")
	return models.SelectorRule{
		Selector:       selector,
		IncludeDomains: include,
		ExcludeDomains: exclude,
	}, true
}

// parseNetwork parses a network filter without its @@ prefix
func parseNetwork(line string) (models.URLRule, bool) {
	var rule models.URLRule
	pattern := line

	if idx := strings.LastIndex(line, "$"); idx != -1 {
		if optPart := line[idx+1:]; looksLikeOptions(optPart) {
			pattern = line[:idx]
			applyOptions(&rule, optPart)
		}
	}

	if pattern == "" {
		return rule, false
	}

	if rest, ok := strings.CutPrefix(pattern, "||"); ok {
		rule.IsDomainAnchor = true
		pattern = rest
	} else if rest, ok := strings.CutPrefix(pattern, "|"); ok {
		rule.IsAddressStartAnchor = true
		pattern = rest
	}

	if rest, ok := strings.CutSuffix(pattern, "|"); ok {
		rule.IsAddressEndAnchor = true
		pattern = rest
	}

	if pattern == "" || pattern == "*" || pattern == "^" {
		return rule, false
	}

	rule.Pattern = pattern
	return rule, true
}

// splitDomains splits a domain list into include and ~exclude entries
func splitDomains(s, sep string) (include, exclude []string) {
	for _, d := range strings.Split(s, sep) {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(d, "~"); ok {
			if rest != "" {
				exclude = append(exclude, rest)
			}
			continue
		}
		include = append(include, d)
	}
	return include, exclude
}

// Summarize counts filters by kind
func Summarize(filters []models.Filter) Stats {
	var s Stats
	for _, f := range filters {
		s.Total++
		switch f.(type) {
		case models.URLBlock:
			s.URLBlock++
		case models.URLException:
			s.URLException++
		case models.CSSHide:
			s.CSSHide++
		case models.CSSException:
			s.CSSException++
		case models.Comment:
			s.Comments++
		case models.Unsupported:
			s.Unsupported++
		}
	}
	return s
}
