// Package compiler hands the composed rule set to the content-blocking runtime
// and tracks whether the runtime accepted it.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/registry"
)

// ErrExternalRulesRejected means the runtime refused the combined document but
// accepted the built-in rules alone.
var ErrExternalRulesRejected = errors.New("external subscription rules rejected by runtime")

// builtInSuffix marks the identifier of a built-in-only fallback document
const builtInSuffix = "-builtin"

// State represents the publishing state
type State string

const (
	StateIdle      State = "idle"
	StateCompiling State = "compiling"
	StateActive    State = "active"
	StateDegraded  State = "degraded"
	StateEmpty     State = "empty"
	StateError     State = "error"
)

// Status describes the last publish attempt
type Status struct {
	State      State  `json:"state"`
	Message    string `json:"message,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	RuleCount  int    `json:"rule_count"`
	Truncated  bool   `json:"truncated,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// Publisher composes rules from a Source and compiles them with a RuleCompiler.
// Publishes are serialized.
type Publisher struct {
	source   Source
	compiler RuleCompiler

	mu        sync.Mutex
	status    atomic.Value // Status
	ready     chan struct{}
	readyOnce sync.Once

	onStatusChange func(Status)
}

// NewPublisher creates a publisher
func NewPublisher(source Source, compiler RuleCompiler) *Publisher {
	p := &Publisher{
		source:   source,
		compiler: compiler,
		ready:    make(chan struct{}),
	}
	p.status.Store(Status{State: StateIdle})
	return p
}

// SetStatusCallback registers a function called on every status change
func (p *Publisher) SetStatusCallback(cb func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatusChange = cb
}

func (p *Publisher) setStatus(s Status) {
	p.status.Store(s)
	if p.onStatusChange != nil {
		p.onStatusChange(s)
	}
}

// Status returns the current status
func (p *Publisher) Status() Status {
	if s, ok := p.status.Load().(Status); ok {
		return s
	}
	return Status{State: StateIdle}
}

// Ready is closed once the first publish attempt has finished, whatever its outcome
func (p *Publisher) Ready() <-chan struct{} {
	return p.ready
}

// Wait blocks until the first publish attempt finished or ctx is done
func (p *Publisher) Wait(ctx context.Context) (Status, error) {
	select {
	case <-p.ready:
		return p.Status(), nil
	case <-ctx.Done():
		return p.Status(), ctx.Err()
	}
}

func (p *Publisher) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// Publish compiles the current rule set. When the runtime rejects a document
// containing external rules, the built-in rules are compiled alone and the
// returned error wraps ErrExternalRulesRejected.
func (p *Publisher) Publish(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.markReady()

	ctx = logging.WithComponent(ctx, "publisher")
	log := logging.FromContext(ctx)

	identifier := p.source.Fingerprint()
	p.setStatus(Status{State: StateCompiling, Message: "Compiling rules...", Identifier: identifier})

	rules, truncated, err := p.source.Compose(ctx)
	if err != nil {
		p.setStatus(Status{State: StateError, Message: "Failed to read rules", Identifier: identifier})
		return fmt.Errorf("compose rules: %w", err)
	}

	if len(rules) == 0 {
		log.Info().Msg("no rules enabled, nothing to compile")
		p.setStatus(Status{State: StateEmpty, Message: "No rules enabled", Identifier: identifier})
		return nil
	}

	compileErr := p.compile(ctx, identifier, rules)
	if compileErr == nil {
		log.Info().Str("identifier", identifier).Int("rules", len(rules)).Bool("truncated", truncated).Msg("rules published")
		p.setStatus(Status{
			State:      StateActive,
			Message:    "Rules active",
			Identifier: identifier,
			RuleCount:  len(rules),
			Truncated:  truncated,
		})
		return nil
	}

	builtIn := p.source.BuiltInRules()
	if len(builtIn) == 0 || len(rules) <= len(builtIn) {
		log.Error().Err(compileErr).Msg("runtime rejected rules")
		p.setStatus(Status{State: StateError, Message: "Compilation failed", Identifier: identifier})
		return compileErr
	}

	log.Warn().Err(compileErr).Int("builtin_rules", len(builtIn)).Msg("runtime rejected combined rules, retrying with built-in rules only")

	fallbackID := identifier + builtInSuffix
	if err := p.compile(ctx, fallbackID, builtIn); err != nil {
		log.Error().Err(err).Msg("runtime rejected built-in rules")
		p.setStatus(Status{State: StateError, Message: "Compilation failed", Identifier: identifier})
		return errors.Join(compileErr, err)
	}

	p.setStatus(Status{
		State:      StateDegraded,
		Message:    fmt.Sprintf("External rules caused a compilation failure: %v", compileErr),
		Identifier: fallbackID,
		RuleCount:  len(builtIn),
		Degraded:   true,
	})
	return fmt.Errorf("%w: %w", ErrExternalRulesRejected, compileErr)
}

func (p *Publisher) compile(ctx context.Context, identifier string, rules []models.ContentRule) error {
	doc, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rule document: %w", err)
	}
	if err := p.compiler.Compile(ctx, identifier, doc); err != nil {
		return fmt.Errorf("compile %s: %w", identifier, err)
	}
	return nil
}

// Run publishes once, then again after each rules-changed event until ctx is
// done or events is closed. Events that arrive during a publish are coalesced.
func (p *Publisher) Run(ctx context.Context, events <-chan registry.Event) {
	log := logging.FromContext(ctx)

	publish := func() {
		if err := p.Publish(ctx); err != nil {
			log.Warn().Err(err).Msg("publish failed")
		}
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debug().Str("reason", string(ev.Reason)).Msg("rules changed")
			drain(events)
			publish()
		}
	}
}

func drain(events <-chan registry.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
