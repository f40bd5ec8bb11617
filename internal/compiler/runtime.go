package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
)

// ErrInvalidDocument is returned when a rule document fails validation
var ErrInvalidDocument = errors.New("invalid rule document")

const (
	runtimeDirPerm  = 0o755
	runtimeFilePerm = 0o644
	documentExt     = ".json"
)

var validActions = []string{
	models.ActionBlock,
	models.ActionCSSDisplayNone,
	models.ActionIgnorePreviousRule,
}

// DirRuntime is a RuleCompiler that validates documents and stores accepted
// ones as <identifier>.json in a directory, for a browser to load.
type DirRuntime struct {
	dir      string
	maxRules int
}

// NewDirRuntime creates dir if needed
func NewDirRuntime(dir string, maxRules int) (*DirRuntime, error) {
	if err := os.MkdirAll(dir, runtimeDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create runtime dir: %w", err)
	}
	if maxRules <= 0 {
		maxRules = converter.DefaultMaxRules
	}
	return &DirRuntime{dir: dir, maxRules: maxRules}, nil
}

// Path returns the file an identifier compiles to
func (d *DirRuntime) Path(identifier string) string {
	return filepath.Join(d.dir, identifier+documentExt)
}

// Compile validates document and stores it under identifier, replacing any
// previously stored documents.
func (d *DirRuntime) Compile(ctx context.Context, identifier string, document []byte) error {
	log := logging.FromContext(ctx)

	if identifier == "" || identifier != filepath.Base(identifier) || strings.HasPrefix(identifier, ".") {
		return fmt.Errorf("%w: bad identifier %q", ErrInvalidDocument, identifier)
	}

	var rules []models.ContentRule
	if err := json.Unmarshal(document, &rules); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if len(rules) == 0 {
		return fmt.Errorf("%w: no rules", ErrInvalidDocument)
	}
	if len(rules) > d.maxRules {
		return fmt.Errorf("%w: %d rules exceeds limit of %d", ErrInvalidDocument, len(rules), d.maxRules)
	}

	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("%w: rule %d: %w", ErrInvalidDocument, i, err)
		}
	}

	path := d.Path(identifier)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, document, runtimeFilePerm); err != nil {
		return fmt.Errorf("failed to write rule document: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to replace rule document: %w", err)
	}

	if err := d.prune(identifier); err != nil {
		log.Warn().Err(err).Msg("failed to remove stale rule documents")
	}

	log.Debug().Str("path", path).Int("rules", len(rules)).Msg("rule document stored")
	return nil
}

func validateRule(r models.ContentRule) error {
	if r.Trigger.URLFilter == "" {
		return errors.New("missing url-filter")
	}
	if !slices.Contains(validActions, r.Action.Type) {
		return fmt.Errorf("unknown action type %q", r.Action.Type)
	}
	if r.Action.Type == models.ActionCSSDisplayNone && r.Action.Selector == "" {
		return errors.New("css-display-none without selector")
	}
	if len(r.Trigger.LoadType) > 1 {
		return errors.New("load-type takes a single value")
	}
	return converter.ValidateRegex(r.Trigger.URLFilter)
}

// Identifiers lists the stored documents
func (d *DirRuntime) Identifiers() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runtime dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), documentExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), documentExt))
	}
	return ids, nil
}

func (d *DirRuntime) prune(keep string) error {
	ids, err := d.Identifiers()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if id == keep {
			continue
		}
		if err := os.Remove(d.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
