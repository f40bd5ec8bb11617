package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/converter"
	"github.com/bnema/rulekit/internal/fetcher"
	"github.com/bnema/rulekit/internal/models"
	"github.com/bnema/rulekit/internal/parser"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the configured filter lists to WebKit JSON files",
	Long: `Fetch every enabled list from the config, convert it and write one JSON
file per list (split when over the per-file budget), plus a deduplicated
combined set and a manifest. Nothing is stored in the subscription state.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "./output", "output directory")
	convertCmd.Flags().Bool("dry-run", false, "parse and convert without writing files")
	convertCmd.Flags().Bool("combined", true, "generate combined output file")
	convertCmd.Flags().Bool("verbose", false, "verbose output")
}

func runConvert(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	generateCombined, _ := cmd.Flags().GetBool("combined")
	if !cmd.Flags().Changed("combined") {
		generateCombined = cfg.Output.GenerateCombined
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	enabledLists := cfg.EnabledLists()
	if len(enabledLists) == 0 {
		return fmt.Errorf("no enabled filter lists found in config")
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Converting %d filter lists...", len(enabledLists))))
	if dryRun {
		fmt.Println(warnStyle.Render("[DRY RUN] No files will be written"))
	}

	ctx := cmd.Context()
	f := fetcher.New(cfg.HTTP)
	splitter := converter.NewSplitter(cfg.Output.MaxRulesPerFile)

	var allRules []models.ContentRule
	results := make(map[string]ListResult)
	totalSkips := make(map[string]int)
	unsupported := 0

	for _, list := range enabledLists {
		fmt.Printf("\n  Processing %s...\n", list.Name)

		data, _, err := f.Fetch(ctx, list.URL)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("    ERROR: %v", err)))
			continue
		}
		fmt.Printf("    Downloaded: %d bytes\n", len(data))

		filters := parser.ParseString(data)
		pStats := parser.Summarize(filters)

		// per-list output is never truncated; splitting keeps files within budget
		rules, cStats := converter.Convert(filters, len(filters)+1)

		totalSkipped := pStats.Unsupported + cStats.Skipped()
		fmt.Printf("    Converted: %d rules (skipped: %d)\n", len(rules), totalSkipped)

		if verbose {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("    Parsed: %d total, %d block, %d exceptions, %d cosmetic, %d comments",
				pStats.Total, pStats.URLBlock, pStats.URLException+pStats.CSSException, pStats.CSSHide, pStats.Comments)))
			if len(cStats.SkipReasons) > 0 {
				fmt.Printf("    Convert skips:\n")
				for _, reason := range slices.Sorted(maps.Keys(cStats.SkipReasons)) {
					fmt.Printf("      - %s: %d\n", reason, cStats.SkipReasons[reason])
				}
			}
		}
		unsupported += pStats.Unsupported
		for reason, count := range cStats.SkipReasons {
			totalSkips[reason] += count
		}

		results[list.Name] = ListResult{
			Name:         list.Name,
			URL:          list.URL,
			RulesCount:   len(rules),
			SkippedCount: totalSkipped,
		}

		if !dryRun {
			for _, part := range splitter.Split(rules, list.Name) {
				if err := writeJSON(outputDir, part.Name+".json", part.Rules); err != nil {
					fmt.Println(errorStyle.Render(fmt.Sprintf("    ERROR writing %s: %v", part.Name, err)))
				}
			}
		}

		allRules = append(allRules, rules...)
	}

	if unsupported > 0 || len(totalSkips) > 0 {
		fmt.Printf("\nSkipped filters summary:\n")
		if unsupported > 0 {
			fmt.Printf("  unsupported-syntax: %d\n", unsupported)
		}
		for _, reason := range slices.Sorted(maps.Keys(totalSkips)) {
			fmt.Printf("  %s: %d\n", reason, totalSkips[reason])
		}
	}

	if generateCombined && len(allRules) > 0 {
		fmt.Printf("\nGenerating combined output...\n")
		allRules = converter.Deduplicate(allRules)
		fmt.Printf("  Total rules: %d (after deduplication)\n", len(allRules))

		if !dryRun {
			var partNames []string
			for _, part := range splitter.Split(allRules, "combined") {
				if err := writeJSON(outputDir, part.Name+".json", part.Rules); err != nil {
					fmt.Println(errorStyle.Render(fmt.Sprintf("  ERROR writing %s: %v", part.Name, err)))
				}
				partNames = append(partNames, part.Name+".json")
			}

			if cfg.Output.GenerateManifest {
				now := time.Now()
				manifest := Manifest{
					Version:          now.Format("2006.01.02"),
					GeneratedAt:      now.UTC().Format(time.RFC3339),
					ConverterVersion: converter.Version,
					Lists:            results,
					Combined: CombinedInfo{
						TotalRules: len(allRules),
						Files:      partNames,
					},
				}
				if err := writeJSON(outputDir, "manifest.json", manifest); err != nil {
					fmt.Println(errorStyle.Render(fmt.Sprintf("  ERROR writing manifest: %v", err)))
				}
			}
		}
	}

	fmt.Println(successStyle.Render("\nDone!"))
	return nil
}

func writeJSON(dir, filename string, data any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ListResult contains conversion results for a single list
type ListResult struct {
	Name         string `json:"name"`
	URL          string `json:"source_url"`
	RulesCount   int    `json:"rules_count"`
	SkippedCount int    `json:"skipped_count"`
}

// Manifest contains metadata about the conversion
type Manifest struct {
	Version          string                `json:"version"`
	GeneratedAt      string                `json:"generated_at"`
	ConverterVersion int                   `json:"converter_version"`
	Lists            map[string]ListResult `json:"lists"`
	Combined         CombinedInfo          `json:"combined"`
}

// CombinedInfo contains combined file info
type CombinedInfo struct {
	TotalRules int      `json:"total_rules"`
	Files      []string `json:"files"`
}
