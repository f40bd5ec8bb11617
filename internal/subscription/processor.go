package subscription

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/fetcher"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/parser"
)

// Result is the outcome of processing changed list content
type Result struct {
	Subscription models.Subscription
	Rules        []models.ContentRule
	Stats        converter.Stats
	Parse        parser.Stats
	Metadata     parser.Metadata
}

// Processor fetches a subscription's list and compiles it when its content changed
type Processor struct {
	transport Transport
	maxRules  int
	now       func() time.Time
}

// NewProcessor creates a processor converting at most maxRules per list
func NewProcessor(transport Transport, maxRules int) *Processor {
	return &Processor{
		transport: transport,
		maxRules:  maxRules,
		now:       time.Now,
	}
}

// FetchAndProcess downloads sub's list. It returns nil when the content checksum
// matches the stored one and force is false. On error sub is left untouched.
func (p *Processor) FetchAndProcess(ctx context.Context, sub models.Subscription, force bool) (*Result, error) {
	log := logging.FromContext(ctx)

	content, status, err := p.transport.Fetch(ctx, sub.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sub.SourceURL, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %w", sub.SourceURL, &fetcher.StatusError{URL: sub.SourceURL, Code: status})
	}

	sum := Checksum(content)
	if !force && sub.Checksum == sum {
		log.Debug().Str("subscription", sub.ID).Msg("list content unchanged")
		return nil, nil
	}

	md := parser.ParseMetadata(content)
	filters := parser.ParseString(content)
	rules, stats := converter.Convert(filters, p.maxRules)

	now := p.now().UTC()
	updated := sub
	updated.Checksum = sum
	updated.LastUpdated = &now
	updated.RuleCount = len(rules)
	updated.LastError = ""
	updated.Version = md.Version
	updated.Homepage = md.Homepage
	updated.Expires = md.Expires
	if updated.Name == "" {
		updated.Name = md.Title
	}

	log.Info().
		Str("subscription", sub.ID).
		Int("rules", len(rules)).
		Int("skipped", stats.Skipped()).
		Bool("truncated", stats.Truncated).
		Msg("list compiled")

	return &Result{
		Subscription: updated,
		Rules:        rules,
		Stats:        stats,
		Parse:        parser.Summarize(filters),
		Metadata:     md,
	}, nil
}
