package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// metadataScanLines bounds how far into a list header fields are looked for.
const metadataScanLines = 50

// Metadata holds the "! Key: value" header fields of a filter list
type Metadata struct {
	Title    string
	Version  string
	Homepage string
	Expires  time.Duration
}

var reExpires = regexp.MustCompile(`(?i)^(\d+)\s*(hour|hours|h|day|days|d)\b`)

// ParseMetadata reads header fields from the leading comment block of a list.
// Scanning stops at the first rule line.
func ParseMetadata(text string) Metadata {
	var md Metadata
	n := 0

	for raw := range strings.Lines(text) {
		if n >= metadataScanLines {
			break
		}
		n++

		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		body, ok := strings.CutPrefix(line, "!")
		if !ok {
			break
		}

		key, value, ok := strings.Cut(body, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			md.Title = value
		case "version":
			md.Version = value
		case "homepage":
			md.Homepage = value
		case "expires":
			md.Expires = parseExpires(value)
		}
	}

	return md
}

// parseExpires understands "4 days", "12 hours" and "1 day (update frequency)"
func parseExpires(s string) time.Duration {
	m := reExpires.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * 24 * time.Hour
}
