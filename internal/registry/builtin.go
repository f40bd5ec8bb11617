package registry

import (
	"regexp"
	"strings"

	"github.com/bnema/rulekit/internal/models"
)

const builtInPrefix = "builtin-"

// DefaultLists seed the registry when the configuration names none
var DefaultLists = []models.FilterList{
	{Name: "easylist", URL: "https://easylist.to/easylist/easylist.txt", Enabled: true},
	{Name: "easyprivacy", URL: "https://easylist.to/easylist/easyprivacy.txt", Enabled: true},
	{Name: "ublock-filters", URL: "https://ublockorigin.github.io/uAssets/filters/filters.txt", Enabled: false},
	{Name: "ublock-privacy", URL: "https://ublockorigin.github.io/uAssets/filters/privacy.txt", Enabled: false},
	{Name: "ublock-badware", URL: "https://ublockorigin.github.io/uAssets/filters/badware.txt", Enabled: false},
	{Name: "peter-lowe", URL: "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=adblockplus&showintro=0&mimetype=plaintext", Enabled: false},
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// BuiltInID derives the stable id of a built-in list from its name
func BuiltInID(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	return builtInPrefix + slug
}

// Seeds converts configured lists into built-in subscriptions.
// An empty lists slice falls back to DefaultLists.
func Seeds(lists []models.FilterList) []models.Subscription {
	if len(lists) == 0 {
		lists = DefaultLists
	}

	seen := make(map[string]bool, len(lists))
	seeds := make([]models.Subscription, 0, len(lists))
	for _, l := range lists {
		id := BuiltInID(l.Name)
		if seen[id] {
			continue
		}
		seen[id] = true
		seeds = append(seeds, models.Subscription{
			ID:        id,
			Name:      l.Name,
			SourceURL: l.URL,
			Enabled:   l.Enabled,
			BuiltIn:   true,
		})
	}
	return seeds
}

// mergeSeeds combines seeds with persisted records by id. Persisted state wins
// except for the source URL, which follows the seed. Built-ins come first.
// Persisted built-ins whose seed is gone become ordinary subscriptions.
func mergeSeeds(seeds, persisted []models.Subscription) []models.Subscription {
	byID := make(map[string]models.Subscription, len(persisted))
	for _, s := range persisted {
		byID[s.ID] = s
	}

	merged := make([]models.Subscription, 0, len(seeds)+len(persisted))
	seeded := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		seeded[seed.ID] = true
		if p, ok := byID[seed.ID]; ok {
			p.BuiltIn = true
			p.SourceURL = seed.SourceURL
			merged = append(merged, p)
			continue
		}
		merged = append(merged, seed)
	}

	for _, p := range persisted {
		if seeded[p.ID] {
			continue
		}
		p.BuiltIn = false
		merged = append(merged, p)
	}
	return merged
}
