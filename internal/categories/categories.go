// Package categories holds the built-in rule catalog, grouped into categories
// the user can toggle independently of external subscriptions.
package categories

import (
	"embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/parser"
)

// Category names a group of built-in rules
type Category string

const (
	Ads        Category = "ads"
	Trackers   Category = "trackers"
	Social     Category = "social"
	Annoyances Category = "annoyances"
)

// ErrUnknownCategory is returned for a name outside the catalog
var ErrUnknownCategory = errors.New("unknown category")

var order = []Category{Ads, Trackers, Social, Annoyances}

//go:embed catalog/*.txt
var catalogFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[Category][]models.ContentRule
)

// All returns every category in catalog order
func All() []Category {
	return slices.Clone(order)
}

// Default is the selection used when nothing is configured
func Default() []Category {
	return []Category{Ads, Trackers}
}

// Parse validates a category name
func Parse(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(order, c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// ParseAll validates names and returns them deduplicated in catalog order
func ParseAll(names []string) ([]Category, error) {
	seen := make(map[Category]bool, len(names))
	for _, n := range names {
		c, err := Parse(n)
		if err != nil {
			return nil, err
		}
		seen[c] = true
	}
	var out []Category
	for _, c := range order {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Strings converts categories back to their names
func Strings(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

// Rules concatenates the rules of the selected categories in catalog order
func Rules(selected []Category) []models.ContentRule {
	catalog := load()

	var rules []models.ContentRule
	for _, c := range order {
		if slices.Contains(selected, c) {
			rules = append(rules, catalog[c]...)
		}
	}
	return rules
}

// Count returns the number of rules a category contributes
func Count(c Category) int {
	return len(load()[c])
}

// Compose places builtIn before external and truncates the result to budget.
// It reports whether any rule was dropped.
func Compose(builtIn, external []models.ContentRule, budget int) ([]models.ContentRule, bool) {
	if budget <= 0 {
		budget = converter.DefaultMaxRules
	}

	total := len(builtIn) + len(external)
	out := make([]models.ContentRule, 0, min(total, budget))
	out = append(out, builtIn[:min(len(builtIn), budget)]...)
	if room := budget - len(out); room > 0 {
		out = append(out, external[:min(len(external), room)]...)
	}
	return out, total > budget
}

func load() map[Category][]models.ContentRule {
	compileOnce.Do(func() {
		compiled = make(map[Category][]models.ContentRule, len(order))
		for _, c := range order {
			data, err := catalogFS.ReadFile("catalog/" + string(c) + ".txt")
			if err != nil {
				panic(fmt.Sprintf("categories: missing catalog for %s: %v", c, err))
			}
			rules, _ := converter.Convert(parser.ParseString(string(data)), 0)
			compiled[c] = rules
		}
	})
	return compiled
}
