package compiler

import (
	"context"

	"github.com/bnema/rulekit/internal/models"
)

// RuleCompiler is the content-blocking runtime that compiles a serialized rule
// document and caches the result under identifier.
type RuleCompiler interface {
	Compile(ctx context.Context, identifier string, document []byte) error
}

// Source supplies the rule set to publish. *registry.Registry satisfies it.
type Source interface {
	Compose(ctx context.Context) ([]models.ContentRule, bool, error)
	BuiltInRules() []models.ContentRule
	Fingerprint() string
}

// Ensure concrete types implement the interfaces.
var _ RuleCompiler = (*DirRuntime)(nil)
