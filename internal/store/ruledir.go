package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maypok86/otter"

	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
	blobExt         = ".json"

	// defaultCacheCost bounds the cache by total rule count across cached blobs
	defaultCacheCost = 200_000
)

// RuleDir stores one JSON rule array per subscription id in a directory.
// Reads go through an in-memory cache bounded by rule count.
type RuleDir struct {
	dir   string
	cache otter.Cache[string, []models.ContentRule]
}

// NewRuleDir creates dir if needed and returns a store rooted there
func NewRuleDir(dir string) (*RuleDir, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create rule directory: %w", err)
	}

	cache, err := otter.MustBuilder[string, []models.ContentRule](defaultCacheCost).
		Cost(func(_ string, rules []models.ContentRule) uint32 {
			return uint32(max(len(rules), 1))
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build rule cache: %w", err)
	}

	return &RuleDir{dir: dir, cache: cache}, nil
}

// Dir returns the blob directory
func (d *RuleDir) Dir() string {
	return d.dir
}

func (d *RuleDir) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return filepath.Join(d.dir, id+blobExt), nil
}

// Load reads the rules saved for id
func (d *RuleDir) Load(ctx context.Context, id string) ([]models.ContentRule, error) {
	if rules, ok := d.cache.Get(id); ok {
		return rules, nil
	}

	path, err := d.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules for %s: %w", id, err)
	}

	var rules []models.ContentRule
	if err := json.Unmarshal(data, &rules); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("id", id).Msg("corrupt rule blob")
		return nil, fmt.Errorf("failed to decode rules for %s: %w", id, err)
	}

	d.cache.Set(id, rules)
	return rules, nil
}

// Save atomically replaces the rules for id
func (d *RuleDir) Save(_ context.Context, id string, rules []models.ContentRule) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}

	if rules == nil {
		rules = []models.ContentRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to replace rules: %w", err)
	}

	d.cache.Set(id, rules)
	return nil
}

// Delete removes the blob for id
func (d *RuleDir) Delete(_ context.Context, id string) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}

	d.cache.Delete(id)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete rules for %s: %w", id, err)
	}
	return nil
}

// Clear removes every blob in the directory
func (d *RuleDir) Clear(_ context.Context) error {
	d.cache.Clear()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to list rule directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", e.Name(), err)
		}
	}
	return nil
}
