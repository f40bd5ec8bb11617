package models

import "strings"

// Filter is one parsed line of a filter list.
// The concrete types are URLBlock, URLException, CSSHide, CSSException, Comment and Unsupported.
type Filter interface {
	filter()
}

// URLBlock blocks network requests matching Rule.
type URLBlock struct {
	Rule URLRule
}

// URLException overrides earlier blocks for requests matching Rule.
type URLException struct {
	Rule URLRule
}

// CSSHide hides elements matching Rule.Selector.
type CSSHide struct {
	Rule SelectorRule
}

// CSSException overrides earlier hide rules.
type CSSException struct {
	Rule SelectorRule
}

// Comment is a header or comment line.
type Comment struct {
	Text string
}

// Unsupported is a line that was recognized but cannot be represented.
type Unsupported struct {
	Raw string
}

func (URLBlock) filter()     {}
func (URLException) filter() {}
func (CSSHide) filter()      {}
func (CSSException) filter() {}
func (Comment) filter()      {}
func (Unsupported) filter()  {}

// LoadType restricts a URL rule to first or third party requests
type LoadType int

const (
	LoadAll LoadType = iota
	LoadFirstParty
	LoadThirdParty
)

// URLRule is a network filter with anchors already stripped from Pattern.
type URLRule struct {
	Pattern              string
	ResourceTypes        ResourceTypes // empty = unrestricted
	LoadType             LoadType
	IncludeDomains       []string
	ExcludeDomains       []string
	IsDomainAnchor       bool // ||
	IsAddressStartAnchor bool // leading |
	IsAddressEndAnchor   bool // trailing |
	MatchCase            bool
}

// SelectorRule is a cosmetic filter
type SelectorRule struct {
	Selector       string
	IncludeDomains []string
	ExcludeDomains []string
}

// ResourceType is a request type named in filter options.
type ResourceType uint8

const (
	ResourceScript ResourceType = iota
	ResourceImage
	ResourceStylesheet
	ResourceFont
	ResourceMedia
	ResourceXMLHTTPRequest
	ResourceWebSocket
	ResourceDocument
	ResourceSubdocument
	ResourcePopup
	ResourceOther

	resourceTypeCount
)

var resourceTypeNames = [resourceTypeCount]string{
	"script", "image", "stylesheet", "font", "media", "xmlhttprequest",
	"websocket", "document", "subdocument", "popup", "other",
}

var resourceTypeAliases = map[string]ResourceType{
	"css": ResourceStylesheet,
	"xhr": ResourceXMLHTTPRequest,
}

func (t ResourceType) String() string {
	if t >= resourceTypeCount {
		return "unknown"
	}
	return resourceTypeNames[t]
}

// ParseResourceType resolves an option keyword (including short aliases) to a ResourceType.
func ParseResourceType(name string) (ResourceType, bool) {
	name = strings.ToLower(name)
	for i, n := range resourceTypeNames {
		if n == name {
			return ResourceType(i), true
		}
	}
	t, ok := resourceTypeAliases[name]
	return t, ok
}

// ResourceTypeKeywords lists every option keyword that names a resource type.
func ResourceTypeKeywords() []string {
	keywords := make([]string, 0, len(resourceTypeNames)+len(resourceTypeAliases))
	keywords = append(keywords, resourceTypeNames[:]...)
	for alias := range resourceTypeAliases {
		keywords = append(keywords, alias)
	}
	return keywords
}

// ResourceTypes is a set of ResourceType values.
type ResourceTypes uint16

// AllResourceTypes contains every known resource type.
const AllResourceTypes ResourceTypes = 1<<resourceTypeCount - 1

// NewResourceTypes builds a set from the given types.
func NewResourceTypes(types ...ResourceType) ResourceTypes {
	var s ResourceTypes
	for _, t := range types {
		s = s.With(t)
	}
	return s
}

func (s ResourceTypes) Has(t ResourceType) bool {
	return s&(1<<t) != 0
}

func (s ResourceTypes) With(t ResourceType) ResourceTypes {
	return s | 1<<t
}

func (s ResourceTypes) Without(t ResourceType) ResourceTypes {
	return s &^ (1 << t)
}

func (s ResourceTypes) IsEmpty() bool {
	return s == 0
}

// Types returns the members in declaration order.
func (s ResourceTypes) Types() []ResourceType {
	var out []ResourceType
	for t := ResourceType(0); t < resourceTypeCount; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s ResourceTypes) String() string {
	names := make([]string, 0, resourceTypeCount)
	for _, t := range s.Types() {
		names = append(names, t.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
