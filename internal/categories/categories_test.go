package categories

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/parser"
)

func TestCatalog_EveryLineConverts(t *testing.T) {
	for _, c := range All() {
		t.Run(string(c), func(t *testing.T) {
			data, err := catalogFS.ReadFile("catalog/" + string(c) + ".txt")
			require.NoError(t, err)

			_, stats := converter.Convert(parser.ParseString(string(data)), 0)
			assert.Zero(t, stats.Skipped(), "skip reasons: %v", stats.SkipReasons)
			assert.Zero(t, stats.Unsupported)
			assert.Positive(t, Count(c))
		})
	}
}

func TestRules_CatalogOrder(t *testing.T) {
	forward := Rules([]Category{Ads, Social})
	reversed := Rules([]Category{Social, Ads})
	assert.Equal(t, forward, reversed)
	assert.Len(t, forward, Count(Ads)+Count(Social))
	assert.Empty(t, Rules(nil))
}

func TestParseAll(t *testing.T) {
	got, err := ParseAll([]string{"Social", "ads", "social"})
	require.NoError(t, err)
	assert.Equal(t, []Category{Ads, Social}, got)

	_, err = ParseAll([]string{"malware"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func rulesNamed(prefix string, n int) []models.ContentRule {
	out := make([]models.ContentRule, n)
	for i := range out {
		out[i] = models.ContentRule{
			Trigger: models.Trigger{URLFilter: fmt.Sprintf("%s%d", prefix, i)},
			Action:  models.Action{Type: models.ActionBlock},
		}
	}
	return out
}

func TestCompose(t *testing.T) {
	builtIn := rulesNamed("b", 3)
	external := rulesNamed("e", 4)

	tests := []struct {
		name          string
		budget        int
		wantLen       int
		wantTruncated bool
		lastFilter    string
	}{
		{"fits", 10, 7, false, "e3"},
		{"exact", 7, 7, false, "e3"},
		{"drops external first", 5, 5, true, "e1"},
		{"built-ins only", 3, 3, true, "b2"},
		{"built-ins truncated", 2, 2, true, "b1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Compose(builtIn, external, tt.budget)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantTruncated, truncated)
			assert.Equal(t, "b0", got[0].Trigger.URLFilter)
			assert.Equal(t, tt.lastFilter, got[len(got)-1].Trigger.URLFilter)
		})
	}
}

func TestCompose_DefaultBudget(t *testing.T) {
	got, truncated := Compose(rulesNamed("b", 1), rulesNamed("e", converter.DefaultMaxRules), 0)
	assert.Len(t, got, converter.DefaultMaxRules)
	assert.True(t, truncated)
}
