package main

import (
	"context"
	"fmt"

	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/fetcher"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/registry"
	"github.com/bnema/rulekit/internal/store"
	"github.com/bnema/rulekit/internal/store/sqlite"
	"github.com/bnema/rulekit/internal/subscription"
)

// app is the persisted subscription state opened from the config
type app struct {
	kv       *sqlite.KV
	rules    *store.RuleDir
	registry *registry.Registry
}

func openApp(ctx context.Context, cfg *models.Config) (*app, error) {
	cats, err := categories.ParseAll(cfg.Rules.Categories)
	if err != nil {
		return nil, err
	}

	kv, err := sqlite.Open(ctx, cfg.Storage.DatabasePath())
	if err != nil {
		return nil, err
	}

	rules, err := store.NewRuleDir(cfg.Storage.RulesDir())
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	processor := subscription.NewProcessor(fetcher.New(cfg.HTTP), cfg.Rules.MaxRules)
	reg := registry.New(registry.Config{
		KV:         kv,
		Rules:      rules,
		Fetcher:    processor,
		Seeds:      registry.Seeds(cfg.Lists),
		MaxRules:   cfg.Rules.MaxRules,
		Categories: cats,
	})
	if err := reg.Init(ctx); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	return &app{kv: kv, rules: rules, registry: reg}, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}
