package models

import "time"

// Subscription is a remote filter list the registry keeps compiled.
type Subscription struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	SourceURL   string        `json:"source_url" yaml:"source_url"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	BuiltIn     bool          `json:"built_in" yaml:"built_in"`
	LastUpdated *time.Time    `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
	RuleCount   int           `json:"rule_count" yaml:"rule_count"`
	Checksum    string        `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	LastError   string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Version     string        `json:"version,omitempty" yaml:"version,omitempty"`
	Homepage    string        `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	Expires     time.Duration `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// ResetCompiled clears everything derived from the last successful compile.
func (s *Subscription) ResetCompiled() {
	s.Checksum = ""
	s.RuleCount = 0
	s.LastUpdated = nil
}
