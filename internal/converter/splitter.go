package converter

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/rulekit/internal/models"
)

// Splitter splits rules into chunks that each fit the runtime's budget
type Splitter struct {
	maxRules int
}

// NewSplitter creates a splitter with the given max rules per file
func NewSplitter(maxRules int) *Splitter {
	if maxRules <= 0 {
		maxRules = DefaultMaxRules
	}
	return &Splitter{maxRules: maxRules}
}

// Part is one chunk of a split rule set
type Part struct {
	Name  string
	Rules []models.ContentRule
}

// Split divides rules into ordered parts. A set within budget is returned as a single part named baseName.
func (s *Splitter) Split(rules []models.ContentRule, baseName string) []Part {
	if len(rules) <= s.maxRules {
		return []Part{{Name: baseName, Rules: rules}}
	}

	numParts := (len(rules) + s.maxRules - 1) / s.maxRules
	parts := make([]Part, 0, numParts)

	for i := range numParts {
		start := i * s.maxRules
		end := min(start+s.maxRules, len(rules))
		parts = append(parts, Part{
			Name:  fmt.Sprintf("%s-part%d", baseName, i+1),
			Rules: rules[start:end],
		})
	}

	return parts
}

// Deduplicate removes rules whose serialized form was already seen, keeping the first occurrence
func Deduplicate(rules []models.ContentRule) []models.ContentRule {
	seen := make(map[string]struct{}, len(rules))
	result := make([]models.ContentRule, 0, len(rules))

	for _, r := range rules {
		key, err := json.Marshal(r)
		if err != nil {
			result = append(result, r)
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		result = append(result, r)
	}

	return result
}
