// Package registry owns the subscription collection: seeding, user edits,
// updates, persisted rule blobs and the converter-version stamp.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/store"
	"github.com/bnema/rulekit/internal/subscription"
)

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrBuiltIn          = errors.New("built-in subscriptions cannot be removed")
	ErrDuplicateURL     = errors.New("a subscription with this URL already exists")
	ErrInvalidURL       = errors.New("subscription URL must be an absolute http or https URL")
	ErrUpdateInProgress = errors.New("an update is already in progress")
)

const (
	keySubscriptions    = "subscriptions"
	keyConverterVersion = "converter_version"
	keyCategories       = "categories"
)

// Fetcher compiles a subscription's list; *subscription.Processor satisfies it.
type Fetcher interface {
	FetchAndProcess(ctx context.Context, sub models.Subscription, force bool) (*subscription.Result, error)
}

// Config wires a Registry to its collaborators
type Config struct {
	KV       store.KV
	Rules    store.RuleStore
	Fetcher  Fetcher
	Seeds    []models.Subscription
	MaxRules int
	// Categories is the selection used until one is persisted
	Categories []categories.Category
}

// Progress counts finished subscriptions of the running bulk update
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// State is a point-in-time copy of the registry's published state
type State struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Categories    []categories.Category `json:"categories"`
	Updating      bool                  `json:"updating"`
	LastError     string                `json:"last_error,omitempty"`
	Progress      Progress              `json:"progress"`
}

// UpdateReport lists subscription ids by outcome
type UpdateReport struct {
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
	Failed    []string `json:"failed"`
}

// Registry is the single owner of subscription state. Mutations hold mu;
// network fetches run outside it.
type Registry struct {
	kv       store.KV
	rules    store.RuleStore
	fetcher  Fetcher
	seeds    []models.Subscription
	maxRules int
	version  int

	mu          sync.Mutex
	subs        []models.Subscription
	cats        []categories.Category
	defaultCats []categories.Category
	lastErr     string
	progress    Progress

	updating atomic.Bool
	notifier *Notifier
}

// New creates a registry. Call Init before use.
func New(cfg Config) *Registry {
	cats := cfg.Categories
	if cats == nil {
		cats = categories.Default()
	}
	return &Registry{
		kv:          cfg.KV,
		rules:       cfg.Rules,
		fetcher:     cfg.Fetcher,
		seeds:       cfg.Seeds,
		maxRules:    cfg.MaxRules,
		version:     converter.Version,
		defaultCats: cats,
		notifier:    NewNotifier(),
	}
}

// Notifier returns the rules-changed broadcaster
func (r *Registry) Notifier() *Notifier {
	return r.notifier
}

// Init loads persisted state, merges built-in seeds and discards every
// compiled blob when the stored converter version differs from the running one.
func (r *Registry) Init(ctx context.Context) error {
	ctx = logging.WithComponent(ctx, "registry")
	log := logging.FromContext(ctx)

	persisted, err := r.loadSubscriptions(ctx)
	if err != nil {
		return err
	}
	cats, err := r.loadCategories(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = mergeSeeds(r.seeds, persisted)
	r.cats = cats

	stored, err := r.storedVersion(ctx)
	if err != nil {
		return err
	}
	if stored != r.version {
		// Reset records are persisted before blobs go and the stamp moves, so
		// an interrupted invalidation is redone on the next start.
		log.Info().Int("stored", stored).Int("current", r.version).Msg("converter version changed, discarding compiled rules")
		for i := range r.subs {
			r.subs[i].ResetCompiled()
		}
		if err := r.saveLocked(ctx); err != nil {
			return err
		}
		if err := r.rules.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear compiled rules: %w", err)
		}
		if err := r.kv.Put(ctx, keyConverterVersion, []byte(strconv.Itoa(r.version))); err != nil {
			return fmt.Errorf("failed to store converter version: %w", err)
		}
		defer r.notifier.Notify(ReasonInvalidated)
	} else if err := r.saveLocked(ctx); err != nil {
		return err
	}

	log.Debug().Int("subscriptions", len(r.subs)).Strs("categories", categories.Strings(r.cats)).Msg("registry initialized")
	return nil
}

func (r *Registry) loadSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	data, err := r.kv.Get(ctx, keySubscriptions)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	var subs []models.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	return subs, nil
}

func (r *Registry) loadCategories(ctx context.Context) ([]categories.Category, error) {
	data, err := r.kv.Get(ctx, keyCategories)
	if errors.Is(err, store.ErrNotFound) {
		return slices.Clone(r.defaultCats), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	cats, err := categories.ParseAll(names)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("ignoring stored categories")
		return slices.Clone(r.defaultCats), nil
	}
	return cats, nil
}

func (r *Registry) storedVersion(ctx context.Context) (int, error) {
	data, err := r.kv.Get(ctx, keyConverterVersion)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load converter version: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return v, nil
}

func (r *Registry) saveLocked(ctx context.Context) error {
	return r.persist(ctx, r.subs)
}

func (r *Registry) persist(ctx context.Context, subs []models.Subscription) error {
	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("failed to encode subscriptions: %w", err)
	}
	if err := r.kv.Put(ctx, keySubscriptions, data); err != nil {
		return fmt.Errorf("failed to save subscriptions: %w", err)
	}
	return nil
}

func (r *Registry) indexLocked(id string) int {
	return slices.IndexFunc(r.subs, func(s models.Subscription) bool { return s.ID == id })
}

// Add registers a user subscription, enabled and not yet compiled.
// An empty name is filled from the list title on first update.
func (r *Registry) Add(ctx context.Context, name, sourceURL string) (models.Subscription, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if err := validateURL(sourceURL); err != nil {
		return models.Subscription{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if strings.EqualFold(s.SourceURL, sourceURL) {
			return models.Subscription{}, fmt.Errorf("%w: %s", ErrDuplicateURL, s.ID)
		}
	}

	sub := models.Subscription{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		SourceURL: sourceURL,
		Enabled:   true,
	}
	r.subs = append(r.subs, sub)
	if err := r.saveLocked(ctx); err != nil {
		r.subs = r.subs[:len(r.subs)-1]
		return models.Subscription{}, err
	}

	logging.FromContext(ctx).Info().Str("subscription", sub.ID).Str("url", sourceURL).Msg("subscription added")
	r.notifier.Notify(ReasonSubscriptions)
	return sub, nil
}

var validate = validator.New()

func validateURL(raw string) error {
	if err := validate.Var(raw, "required,http_url"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// Remove deletes a user subscription and its compiled rules
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub := r.subs[idx]
	if sub.BuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltIn, id)
	}

	remaining := slices.Delete(slices.Clone(r.subs), idx, idx+1)
	if err := r.persist(ctx, remaining); err != nil {
		return err
	}
	r.subs = remaining

	log := logging.FromContext(ctx)
	if err := r.rules.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("subscription", id).Msg("failed to delete compiled rules of removed subscription")
	}

	log.Info().Str("subscription", id).Msg("subscription removed")
	if sub.Enabled {
		r.notifier.Notify(ReasonSubscriptions)
	}
	return nil
}

// SetEnabled toggles a subscription. It is a no-op when the state already matches.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.subs[idx].Enabled == enabled {
		return nil
	}

	r.subs[idx].Enabled = enabled
	if err := r.saveLocked(ctx); err != nil {
		r.subs[idx].Enabled = !enabled
		return err
	}

	r.notifier.Notify(ReasonSubscriptions)
	return nil
}

// Subscriptions returns a copy of every subscription, built-ins first
func (r *Registry) Subscriptions() []models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.subs)
}

// Get returns one subscription by id
func (r *Registry) Get(id string) (models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx == -1 {
		return models.Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.subs[idx], nil
}

// Categories returns the enabled built-in categories
func (r *Registry) Categories() []categories.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cats)
}

// SetCategories replaces the enabled categories
func (r *Registry) SetCategories(ctx context.Context, cats []categories.Category) error {
	names := categories.Strings(cats)
	normalized, err := categories.ParseAll(names)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Equal(normalized, r.cats) {
		return nil
	}

	data, err := json.Marshal(categories.Strings(normalized))
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	if err := r.kv.Put(ctx, keyCategories, data); err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}
	r.cats = normalized

	r.notifier.Notify(ReasonCategories)
	return nil
}

// ResetCategories forgets the persisted selection and returns to the
// configured default categories.
func (r *Registry) ResetCategories(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Delete(ctx, keyCategories); err != nil {
		return fmt.Errorf("failed to reset categories: %w", err)
	}

	defaults := slices.Clone(r.defaultCats)
	if slices.Equal(defaults, r.cats) {
		return nil
	}
	r.cats = defaults

	r.notifier.Notify(ReasonCategories)
	return nil
}

// State returns a snapshot of the published state
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return State{
		Subscriptions: slices.Clone(r.subs),
		Categories:    slices.Clone(r.cats),
		Updating:      r.updating.Load(),
		LastError:     r.lastErr,
		Progress:      r.progress,
	}
}

// Updating reports whether a bulk update is running
func (r *Registry) Updating() bool {
	return r.updating.Load()
}

// Update fetches one subscription, enabled or not
func (r *Registry) Update(ctx context.Context, id string, force bool) (bool, error) {
	if !r.updating.CompareAndSwap(false, true) {
		return false, ErrUpdateInProgress
	}
	defer r.updating.Store(false)

	sub, err := r.Get(id)
	if err != nil {
		return false, err
	}

	changed, err := r.updateOne(ctx, sub, force)
	if changed && sub.Enabled {
		r.notifier.Notify(ReasonRules)
	}
	return changed, err
}

// UpdateAll fetches every enabled subscription in order. A failing subscription
// records its error and the loop continues. A call made while another bulk
// update is running returns ErrUpdateInProgress without doing anything.
func (r *Registry) UpdateAll(ctx context.Context, force bool) (UpdateReport, error) {
	var report UpdateReport
	if !r.updating.CompareAndSwap(false, true) {
		return report, ErrUpdateInProgress
	}
	defer r.updating.Store(false)

	ctx = logging.WithComponent(ctx, "registry")
	log := logging.FromContext(ctx)

	var enabled []models.Subscription
	r.mu.Lock()
	for _, s := range r.subs {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	r.lastErr = ""
	r.progress = Progress{Total: len(enabled)}
	r.mu.Unlock()

	for _, sub := range enabled {
		changed, err := r.updateOne(ctx, sub, force)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, sub.ID)
		case changed:
			report.Updated = append(report.Updated, sub.ID)
		default:
			report.Unchanged = append(report.Unchanged, sub.ID)
		}

		r.mu.Lock()
		r.progress.Completed++
		if err != nil {
			r.lastErr = fmt.Sprintf("%s: %v", sub.Name, err)
		}
		r.mu.Unlock()
	}

	log.Info().
		Int("updated", len(report.Updated)).
		Int("unchanged", len(report.Unchanged)).
		Int("failed", len(report.Failed)).
		Msg("subscriptions updated")

	if len(report.Updated) > 0 {
		r.notifier.Notify(ReasonRules)
	}
	return report, nil
}

// updateOne fetches sub and stores the outcome. A failed blob write keeps the
// previous checksum so the next update retries the compile.
func (r *Registry) updateOne(ctx context.Context, sub models.Subscription, force bool) (bool, error) {
	ctx = logging.WithSubscription(ctx, sub.ID)
	log := logging.FromContext(ctx)

	if !force && sub.Checksum != "" {
		if _, err := r.rules.Load(ctx, sub.ID); errors.Is(err, store.ErrNotFound) {
			log.Info().Msg("compiled rules missing, recompiling")
			force = true
		}
	}

	res, err := r.fetcher.FetchAndProcess(ctx, sub, force)
	if err != nil {
		log.Warn().Err(err).Msg("subscription update failed")
		r.recordError(ctx, sub.ID, err)
		return false, err
	}
	if res == nil {
		r.recordError(ctx, sub.ID, nil)
		return false, nil
	}

	if err := r.rules.Save(ctx, sub.ID, res.Rules); err != nil {
		log.Error().Err(err).Msg("failed to store compiled rules")
		r.recordError(ctx, sub.ID, err)
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(sub.ID)
	if idx == -1 {
		// Removed while fetching.
		_ = r.rules.Delete(ctx, sub.ID)
		return false, nil
	}

	cur := &r.subs[idx]
	fetched := res.Subscription
	cur.Checksum = fetched.Checksum
	cur.LastUpdated = fetched.LastUpdated
	cur.RuleCount = fetched.RuleCount
	cur.LastError = ""
	cur.Version = fetched.Version
	cur.Homepage = fetched.Homepage
	cur.Expires = fetched.Expires
	if cur.Name == "" {
		cur.Name = fetched.Name
	}

	if err := r.saveLocked(ctx); err != nil {
		log.Error().Err(err).Msg("failed to save subscription state")
		return true, err
	}
	return true, nil
}

// recordError stores err on the subscription; nil clears a previous error.
func (r *Registry) recordError(ctx context.Context, id string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx == -1 || r.subs[idx].LastError == msg {
		return
	}
	r.subs[idx].LastError = msg
	if saveErr := r.saveLocked(ctx); saveErr != nil {
		logging.FromContext(ctx).Error().Err(saveErr).Str("subscription", id).Msg("failed to save subscription state")
	}
}

// EnabledRules concatenates the stored rules of every enabled subscription in
// registry order. Subscriptions without a compiled blob are skipped.
func (r *Registry) EnabledRules(ctx context.Context) ([]models.ContentRule, error) {
	var ids []string
	r.mu.Lock()
	for _, s := range r.subs {
		if s.Enabled {
			ids = append(ids, s.ID)
		}
	}
	r.mu.Unlock()

	var out []models.ContentRule
	for _, id := range ids {
		rules, err := r.rules.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			logging.FromContext(ctx).Debug().Str("subscription", id).Msg("no compiled rules yet")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

// BuiltInRules returns the catalog rules of the enabled categories
func (r *Registry) BuiltInRules() []models.ContentRule {
	return categories.Rules(r.Categories())
}

// Compose returns built-in then external rules under the rule budget
func (r *Registry) Compose(ctx context.Context) ([]models.ContentRule, bool, error) {
	external, err := r.EnabledRules(ctx)
	if err != nil {
		return nil, false, err
	}
	rules, truncated := categories.Compose(r.BuiltInRules(), external, r.maxRules)
	if truncated {
		logging.FromContext(ctx).Warn().
			Int("budget", len(rules)).
			Msg("rule budget exceeded, external rules truncated")
	}
	return rules, truncated, nil
}

// Fingerprint identifies the current configuration: converter version,
// enabled categories and enabled subscription ids.
func (r *Registry) Fingerprint() string {
	r.mu.Lock()
	cats := categories.Strings(r.cats)
	var ids []string
	for _, s := range r.subs {
		if s.Enabled {
			ids = append(ids, s.ID)
		}
	}
	r.mu.Unlock()

	slices.Sort(cats)
	slices.Sort(ids)

	h := sha256.New()
	fmt.Fprintf(h, "v%d\n%s\n%s", r.version, strings.Join(cats, ","), strings.Join(ids, ","))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
