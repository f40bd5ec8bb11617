package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/rulekit/internal/api"
	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/compiler"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/registry"
	"github.com/bnema/rulekit/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon: scheduled updates, rule publishing and the control API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	reg := a.registry

	runtime, err := compiler.NewDirRuntime(cfg.Storage.RuntimeDir(), cfg.Rules.MaxRules)
	if err != nil {
		return err
	}
	publisher := compiler.NewPublisher(reg, runtime)
	publisher.SetStatusCallback(func(s compiler.Status) {
		log.Debug().Str("state", string(s.State)).Str("identifier", s.Identifier).Msg(s.Message)
	})

	events := reg.Notifier().Subscribe()
	defer reg.Notifier().Unsubscribe(events)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		publisher.Run(gctx, events)
		return nil
	})

	if cfg.Update.Interval > 0 {
		sched, err := scheduler.New(gctx, reg, cfg.Update.Interval, cfg.Update.OnStart)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("scheduler shutdown failed")
			}
		}()
		if next, err := sched.NextRun(); err == nil {
			log.Info().Time("next_run", next).Dur("interval", cfg.Update.Interval).Msg("scheduled updates enabled")
		}
	}

	if cfg.API.Listen != "" {
		server := api.New(cfg.API.Listen, reg, publisher, log)
		g.Go(func() error {
			log.Info().Str("listen", cfg.API.Listen).Msg("control API listening")
			if err := server.Start(); err != nil {
				return fmt.Errorf("control API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	manager.OnConfigChange(func(c *models.Config) {
		applyConfig(logging.WithContext(gctx, log), reg, c)
	})
	if err := manager.Watch(log); err != nil {
		log.Debug().Err(err).Msg("config hot reload disabled")
	}

	status, err := publisher.Wait(gctx)
	if err == nil {
		log.Info().Str("state", string(status.State)).Int("rules", status.RuleCount).Msg("initial rules published")
	}

	return g.Wait()
}

// applyConfig pushes reloadable settings into the running registry
func applyConfig(ctx context.Context, reg *registry.Registry, c *models.Config) {
	logger := logging.FromContext(ctx)

	cats, err := categories.ParseAll(c.Rules.Categories)
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring categories from config")
		return
	}
	if err := reg.SetCategories(ctx, cats); err != nil {
		logger.Warn().Err(err).Msg("failed to apply categories")
	}
}
