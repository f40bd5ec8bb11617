package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions and their last update",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a filter list",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a user subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var enableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Fetch and compile enabled subscriptions, or a single one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpdate,
}

func init() {
	addCmd.Flags().StringP("name", "n", "", "display name (defaults to the list title)")
	updateCmd.Flags().BoolP("force", "f", false, "recompile even when the list is unchanged")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.registry.State()

	fmt.Println(titleStyle.Render("Subscriptions"))
	fmt.Println()
	for _, s := range state.Subscriptions {
		printSubscription(s)
	}

	fmt.Println(titleStyle.Render("Categories") + " " + mutedStyle.Render(strings.Join(cfgCategories(state.Categories), ", ")))
	return nil
}

func printSubscription(s models.Subscription) {
	name := s.Name
	if name == "" {
		name = mutedStyle.Render("(untitled)")
	}
	fmt.Printf("  %s %s %s\n", statusBadge(s.Enabled), name, kindBadge(s.BuiltIn))
	fmt.Printf("      %s\n", mutedStyle.Render(s.ID))
	fmt.Printf("      %s\n", s.SourceURL)

	switch {
	case s.LastUpdated != nil:
		fmt.Printf("      %d rules, updated %s\n", s.RuleCount, s.LastUpdated.Local().Format("2006-01-02 15:04"))
	default:
		fmt.Printf("      %s\n", mutedStyle.Render("never updated"))
	}
	if s.LastError != "" {
		fmt.Printf("      %s\n", errorStyle.Render(s.LastError))
	}
	fmt.Println()
}

func runAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sub, err := a.registry.Add(cmd.Context(), name, args[0])
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Added subscription " + sub.ID))
	fmt.Println(mutedStyle.Render("Run `rulekit update " + sub.ID + "` to fetch it now."))
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Removed subscription " + args[0]))
	return nil
}

func setEnabled(cmd *cobra.Command, id string, enabled bool) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.SetEnabled(cmd.Context(), id, enabled); err != nil {
		return err
	}

	sub, err := a.registry.Get(id)
	if err != nil {
		return err
	}
	printSubscription(sub)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	ctx := cmd.Context()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		changed, err := a.registry.Update(ctx, args[0], force)
		if err != nil {
			return err
		}
		sub, err := a.registry.Get(args[0])
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println(mutedStyle.Render("Unchanged"))
		}
		printSubscription(sub)
		return nil
	}

	report, err := a.registry.UpdateAll(ctx, force)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d updated, %d unchanged, %d failed\n",
		titleStyle.Render("Update finished:"), len(report.Updated), len(report.Unchanged), len(report.Failed))
	for _, id := range report.Failed {
		sub, err := a.registry.Get(id)
		if err != nil {
			continue
		}
		fmt.Println(errorStyle.Render(fmt.Sprintf("  %s: %s", sub.Name, sub.LastError)))
	}
	if len(report.Failed) > 0 {
		return errors.New("some subscriptions failed to update")
	}
	return nil
}
