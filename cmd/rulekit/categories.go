package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/categories"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories [name...]",
	Short: "Show or set the enabled built-in rule categories",
	Long: `Without arguments, list the built-in categories and whether each is enabled.
With arguments, enable exactly the named categories. Use --none to disable all,
or --reset to go back to the configured defaults.`,
	RunE: runCategories,
}

func init() {
	categoriesCmd.Flags().Bool("none", false, "disable every built-in category")
	categoriesCmd.Flags().Bool("reset", false, "restore the configured default categories")
	categoriesCmd.MarkFlagsMutuallyExclusive("none", "reset")
}

func runCategories(cmd *cobra.Command, args []string) error {
	none, _ := cmd.Flags().GetBool("none")
	reset, _ := cmd.Flags().GetBool("reset")
	ctx := cmd.Context()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case reset:
		if len(args) > 0 {
			return fmt.Errorf("--reset takes no category names")
		}
		if err := a.registry.ResetCategories(ctx); err != nil {
			return err
		}
	case len(args) > 0 || none:
		cats, err := categories.ParseAll(args)
		if err != nil {
			return err
		}
		if err := a.registry.SetCategories(ctx, cats); err != nil {
			return err
		}
	}

	enabled := a.registry.Categories()
	for _, c := range categories.All() {
		fmt.Printf("  %s %-12s %s\n",
			statusBadge(slices.Contains(enabled, c)),
			string(c),
			mutedStyle.Render(fmt.Sprintf("%d rules", categories.Count(c))))
	}
	return nil
}

func cfgCategories(cats []categories.Category) []string {
	if len(cats) == 0 {
		return []string{"none"}
	}
	return categories.Strings(cats)
}
