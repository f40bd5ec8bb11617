package store

import (
	"context"
	"errors"

	"github.com/bnema/rulekit/internal/models"
)

// ErrNotFound is returned when a key or blob does not exist
var ErrNotFound = errors.New("not found")

// KV persists small metadata records (subscription list, version stamp, categories).
type KV interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}

// RuleStore persists the converted rules of each subscription, one blob per id.
type RuleStore interface {
	// Load returns ErrNotFound when no blob exists for id.
	Load(ctx context.Context, id string) ([]models.ContentRule, error)
	Save(ctx context.Context, id string, rules []models.ContentRule) error
	// Delete is a no-op for a missing blob.
	Delete(ctx context.Context, id string) error
	// Clear removes every blob.
	Clear(ctx context.Context) error
}

// Ensure concrete types implement the interfaces.
var (
	_ KV        = (*MemoryKV)(nil)
	_ RuleStore = (*RuleDir)(nil)
)
