package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/registry"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the composed rule document (built-in then subscription rules)",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Share user subscriptions and categories as a YAML bundle",
}

var bundleExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the bundle to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBundleExport,
}

var bundleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add the subscriptions and categories of a bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleImport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	bundleCmd.AddCommand(bundleExportCmd, bundleImportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	ctx := cmd.Context()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rules, truncated, err := a.registry.Compose(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	if output == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %d rules to %s\n", len(rules), output)
	if truncated {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Rule budget reached, some subscription rules were dropped"))
	}
	return nil
}

func runBundleExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.registry.Export()
	if len(args) == 0 {
		return registry.WriteBundle(os.Stdout, b)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := registry.WriteBundle(f, b); err != nil {
		return err
	}
	fmt.Printf("Exported %d subscriptions to %s\n", len(b.Subscriptions), args[0])
	return nil
}

func runBundleImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := registry.ReadBundle(f)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.registry.Import(cmd.Context(), b)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Imported %d new subscriptions", added)))
	return nil
}
