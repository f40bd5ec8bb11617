package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/config"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/models"
)

var (
	cfgFile string
	manager *config.Manager
	cfg     *models.Config
	log     zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rulekit",
	Short: "Manage ad-block filter subscriptions for WebKit content blockers",
	Long: `rulekit fetches Adblock Plus / uBlock Origin filter lists, converts them to
WebKit content-blocker JSON and keeps the compiled rule set up to date.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/rulekit.toml)")

	rootCmd.AddCommand(
		initCmd,
		listCmd,
		convertCmd,
		addCmd,
		removeCmd,
		enableCmd,
		disableCmd,
		updateCmd,
		categoriesCmd,
		exportCmd,
		bundleCmd,
		schemaCmd,
		serveCmd,
	)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	m, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	if err := m.Load(); err != nil {
		return err
	}

	manager = m
	cfg = m.Get()
	log = logging.FromConfig(cfg.Logging)

	if used := m.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("config loaded")
	}

	cmd.SetContext(logging.WithContext(cmdContext(cmd), log))
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	// the config file may not exist yet
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath
	if cfgFile != "" {
		path = cfgFile
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}
