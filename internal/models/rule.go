package models

// ContentRule is one entry of the declarative rule document consumed by the content blocker runtime.
type ContentRule struct {
	Trigger Trigger `json:"trigger" yaml:"trigger" jsonschema:"required"`
	Action  Action  `json:"action" yaml:"action" jsonschema:"required"`
}

// Trigger defines when a rule should activate
type Trigger struct {
	URLFilter                string   `json:"url-filter" yaml:"url-filter" jsonschema:"required,minLength=1"`
	URLFilterIsCaseSensitive *bool    `json:"url-filter-is-case-sensitive,omitempty" yaml:"url-filter-is-case-sensitive,omitempty"`
	ResourceType             []string `json:"resource-type,omitempty" yaml:"resource-type,omitempty" jsonschema:"enum=document,enum=image,enum=style-sheet,enum=script,enum=font,enum=raw,enum=media,enum=popup"`
	LoadType                 []string `json:"load-type,omitempty" yaml:"load-type,omitempty" jsonschema:"maxItems=1,enum=first-party,enum=third-party"`
	IfDomain                 []string `json:"if-domain,omitempty" yaml:"if-domain,omitempty"`
	UnlessDomain             []string `json:"unless-domain,omitempty" yaml:"unless-domain,omitempty"`
}

// Action defines what to do when a rule triggers
type Action struct {
	Type     string `json:"type" yaml:"type" jsonschema:"required,enum=block,enum=ignore-previous-rules,enum=css-display-none"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"` // only for css-display-none
}

// Action type constants
const (
	ActionBlock              = "block"
	ActionCSSDisplayNone     = "css-display-none"
	ActionIgnorePreviousRule = "ignore-previous-rules"
)

// Resource type tokens of the rule document
const (
	TokenDocument   = "document"
	TokenImage      = "image"
	TokenStyleSheet = "style-sheet"
	TokenScript     = "script"
	TokenFont       = "font"
	TokenRaw        = "raw"
	TokenMedia      = "media"
	TokenPopup      = "popup"
)

// Load type tokens
const (
	LoadTokenFirstParty = "first-party"
	LoadTokenThirdParty = "third-party"
)

// MatchAllURLs is the url-filter used by cosmetic rules.
const MatchAllURLs = ".*"
