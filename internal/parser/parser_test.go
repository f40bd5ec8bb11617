package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/rulekit/internal/models"
)

func TestParseLine_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		line string
		want any
	}{
		{"comment bang", "! Title: EasyList", models.Comment{}},
		{"comment header", "[Adblock Plus 2.0]", models.Comment{}},
		{"css hide", "##.banner", models.CSSHide{}},
		{"css exception", "example.com#@#.ad", models.CSSException{}},
		{"css hide empty selector", "example.com##", models.Unsupported{}},
		{"css exception empty selector", "example.com#@#  ", models.Unsupported{}},
		{"extended css", "example.com#?#div:-abp-has(.ad)", models.Unsupported{}},
		{"snippet", "example.com#$#abort-on-property-read foo", models.Unsupported{}},
		{"scriptlet js", "example.com#%#//scriptlet('abort')", models.Unsupported{}},
		{"url exception", "@@||example.com^$document", models.URLException{}},
		{"url exception too broad", "@@*", models.Unsupported{}},
		{"url block", "||ads.example.com^", models.URLBlock{}},
		{"lone star", "*", models.Unsupported{}},
		{"lone caret", "^", models.Unsupported{}},
		{"anchored star", "|*|", models.Unsupported{}},
		{"options only", "$script,third-party", models.Unsupported{}},
		{"bare domain anchor", "||", models.Unsupported{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLine(tt.line)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestParseLine_DomainAnchorWithOptions(t *testing.T) {
	f := ParseLine("||example.com^$script,domain=foo.com|~bar.com")

	block, ok := f.(models.URLBlock)
	require.True(t, ok, "expected URLBlock, got %T", f)

	rule := block.Rule
	assert.True(t, rule.IsDomainAnchor)
	assert.False(t, rule.IsAddressStartAnchor)
	assert.False(t, rule.IsAddressEndAnchor)
	assert.Equal(t, "example.com^", rule.Pattern)
	assert.Equal(t, models.NewResourceTypes(models.ResourceScript), rule.ResourceTypes)
	assert.Equal(t, []string{"foo.com"}, rule.IncludeDomains)
	assert.Equal(t, []string{"bar.com"}, rule.ExcludeDomains)
	assert.Equal(t, models.LoadAll, rule.LoadType)
}

func TestParseLine_NegatedResourceTypeUniverse(t *testing.T) {
	f := ParseLine("ad.js$~image")
	block, ok := f.(models.URLBlock)
	require.True(t, ok)

	want := models.AllResourceTypes.Without(models.ResourceImage)
	assert.Equal(t, want, block.Rule.ResourceTypes)
	assert.False(t, block.Rule.ResourceTypes.Has(models.ResourceImage))
	assert.True(t, block.Rule.ResourceTypes.Has(models.ResourceWebSocket))
	assert.Equal(t, "ad.js", block.Rule.Pattern)
}

func TestParseLine_NegationAfterPositive(t *testing.T) {
	f := ParseLine("/ads/$script,image,~image")
	block, ok := f.(models.URLBlock)
	require.True(t, ok)
	assert.Equal(t, models.NewResourceTypes(models.ResourceScript), block.Rule.ResourceTypes)
}

func TestParseLine_Anchors(t *testing.T) {
	tests := []struct {
		line       string
		pattern    string
		domain     bool
		start, end bool
	}{
		{"||example.com", "example.com", true, false, false},
		{"|https://example.com/", "https://example.com/", false, true, false},
		{"/banner.gif|", "/banner.gif", false, false, true},
		{"|https://example.com/ad.js|", "https://example.com/ad.js", false, true, true},
		{"||example.com/ad.js|", "example.com/ad.js", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			block, ok := ParseLine(tt.line).(models.URLBlock)
			require.True(t, ok)
			assert.Equal(t, tt.pattern, block.Rule.Pattern)
			assert.Equal(t, tt.domain, block.Rule.IsDomainAnchor)
			assert.Equal(t, tt.start, block.Rule.IsAddressStartAnchor)
			assert.Equal(t, tt.end, block.Rule.IsAddressEndAnchor)
		})
	}
}

func TestParseLine_Options(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, r models.URLRule)
	}{
		{
			name: "third-party",
			line: "||tracker.com^$third-party",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, models.LoadThirdParty, r.LoadType)
			},
		},
		{
			name: "negated 3p is first party",
			line: "||tracker.com^$~3p",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, models.LoadFirstParty, r.LoadType)
			},
		},
		{
			name: "negated first-party is third party",
			line: "||tracker.com^$~first-party",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, models.LoadThirdParty, r.LoadType)
			},
		},
		{
			name: "1p",
			line: "||tracker.com^$1p",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, models.LoadFirstParty, r.LoadType)
			},
		},
		{
			name: "match-case",
			line: "/Banner/$match-case",
			check: func(t *testing.T, r models.URLRule) {
				assert.True(t, r.MatchCase)
			},
		},
		{
			name: "negated match-case",
			line: "/Banner/$~match-case",
			check: func(t *testing.T, r models.URLRule) {
				assert.False(t, r.MatchCase)
			},
		},
		{
			name: "aliases and uppercase",
			line: "/x/$CSS,XHR",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, models.NewResourceTypes(models.ResourceStylesheet, models.ResourceXMLHTTPRequest), r.ResourceTypes)
			},
		},
		{
			name: "unknown options ignored",
			line: "/x/$script,important,redirect=noop.js",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, "/x/", r.Pattern)
				assert.Equal(t, models.NewResourceTypes(models.ResourceScript), r.ResourceTypes)
			},
		},
		{
			name: "literal dollar kept in pattern",
			line: "/price$1",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, "/price$1", r.Pattern)
				assert.True(t, r.ResourceTypes.IsEmpty())
			},
		},
		{
			name: "last dollar is the delimiter",
			line: "/a$b/c$image",
			check: func(t *testing.T, r models.URLRule) {
				assert.Equal(t, "/a$b/c", r.Pattern)
				assert.Equal(t, models.NewResourceTypes(models.ResourceImage), r.ResourceTypes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, ok := ParseLine(tt.line).(models.URLBlock)
			require.True(t, ok)
			tt.check(t, block.Rule)
		})
	}
}

func TestParseLine_CSSException(t *testing.T) {
	f := ParseLine("example.com#@#.ad")
	exc, ok := f.(models.CSSException)
	require.True(t, ok)
	assert.Equal(t, ".ad", exc.Rule.Selector)
	assert.Equal(t, []string{"example.com"}, exc.Rule.IncludeDomains)
	assert.Empty(t, exc.Rule.ExcludeDomains)
}

func TestParseLine_CSSDomains(t *testing.T) {
	f := ParseLine("example.com,~sub.example.com,other.org##div.sponsored")
	hide, ok := f.(models.CSSHide)
	require.True(t, ok)
	assert.Equal(t, "div.sponsored", hide.Rule.Selector)
	assert.Equal(t, []string{"example.com", "other.org"}, hide.Rule.IncludeDomains)
	assert.Equal(t, []string{"sub.example.com"}, hide.Rule.ExcludeDomains)
}

func TestParseString_OnePerNonBlankLine(t *testing.T) {
	input := strings.Join([]string{
		"[Adblock Plus 2.0]",
		"! Title: Test",
		"",
		"   ",
		"||ads.example.com^",
		"##.banner-ad",
		"*",
		"example.com#?#.x:-abp-contains(ad)",
		"@@||good.example.com^",
		"\t/track.gif|\r",
	}, "\n")

	filters := ParseString(input)
	require.Len(t, filters, 8)

	stats := Summarize(filters)
	assert.Equal(t, Stats{
		Total:        8,
		URLBlock:     2,
		URLException: 1,
		CSSHide:      1,
		Comments:     2,
		Unsupported:  2,
	}, stats)
}

func TestParse_ReaderMatchesString(t *testing.T) {
	input := "! Title: Test\n||ads.example.com^\n##.banner-ad\n"

	fromReader, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ParseString(input), fromReader)
}

func TestParseString_Total(t *testing.T) {
	garbage := []string{
		"$", "$$$", "@@", "##", "#@#", "||^", "|", "~", "$domain=", "$~",
		"@@$script", "\x00\x01", "a$b$c$", "#?#", "日本語##.x", "||例え.jp^",
	}
	for _, line := range garbage {
		t.Run(line, func(t *testing.T) {
			assert.NotPanics(t, func() {
				filters := ParseString(line)
				assert.Len(t, filters, 1)
			})
		})
	}
}

func TestParseMetadata(t *testing.T) {
	input := strings.Join([]string{
		"[Adblock Plus 2.0]",
		"! Title: EasyList",
		"! Version: 202610190000",
		"! Homepage: https://easylist.to/",
		"! Expires: 4 days (update frequency)",
		"! Title: EasyList (mirror)",
		"||ads.example.com^",
		"! Version: too late",
	}, "\n")

	md := ParseMetadata(input)
	assert.Equal(t, "EasyList (mirror)", md.Title)
	assert.Equal(t, "202610190000", md.Version)
	assert.Equal(t, "https://easylist.to/", md.Homepage)
	assert.Equal(t, 96*time.Hour, md.Expires)
}

func TestParseMetadata_StopsAtFirstRule(t *testing.T) {
	md := ParseMetadata("||ads.example.com^\n! Title: Late\n")
	assert.Empty(t, md.Title)
}

func TestParseMetadata_LimitedToHeaderWindow(t *testing.T) {
	var b strings.Builder
	for range 60 {
		b.WriteString("! padding\n")
	}
	b.WriteString("! Title: Too deep\n")
	assert.Empty(t, ParseMetadata(b.String()).Title)
}

func TestParseExpires(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"4 days", 96 * time.Hour},
		{"1 day (update frequency)", 24 * time.Hour},
		{"12 hours", 12 * time.Hour},
		{"6h", 6 * time.Hour},
		{"soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseExpires(tt.in))
		})
	}
}
