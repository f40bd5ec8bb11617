package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/logging"
)

// Bundle is a portable list of user subscriptions and the category selection
type Bundle struct {
	Categories    []string      `yaml:"categories,omitempty"`
	Subscriptions []BundleEntry `yaml:"subscriptions"`
}

// BundleEntry is one user subscription in a bundle
type BundleEntry struct {
	Name    string `yaml:"name,omitempty"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// Export captures user subscriptions (built-ins excluded) and categories
func (r *Registry) Export() Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := Bundle{Categories: categories.Strings(r.cats)}
	for _, s := range r.subs {
		if s.BuiltIn {
			continue
		}
		b.Subscriptions = append(b.Subscriptions, BundleEntry{Name: s.Name, URL: s.SourceURL, Enabled: s.Enabled})
	}
	return b
}

// Import adds the bundle's subscriptions, skipping URLs already present, and
// applies its categories when set. It returns the number of subscriptions added.
func (r *Registry) Import(ctx context.Context, b Bundle) (int, error) {
	log := logging.FromContext(ctx)

	if len(b.Categories) > 0 {
		cats, err := categories.ParseAll(b.Categories)
		if err != nil {
			return 0, err
		}
		if err := r.SetCategories(ctx, cats); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, e := range b.Subscriptions {
		sub, err := r.Add(ctx, e.Name, e.URL)
		if errors.Is(err, ErrDuplicateURL) {
			log.Debug().Str("url", e.URL).Msg("bundle entry already subscribed")
			continue
		}
		if err != nil {
			return added, fmt.Errorf("import %s: %w", e.URL, err)
		}
		added++
		if !e.Enabled {
			if err := r.SetEnabled(ctx, sub.ID, false); err != nil {
				return added, err
			}
		}
	}
	return added, nil
}

// WriteBundle encodes b as YAML
func WriteBundle(w io.Writer, b Bundle) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadBundle decodes a YAML bundle
func ReadBundle(rd io.Reader) (Bundle, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to read bundle: %w", err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return b, nil
}
