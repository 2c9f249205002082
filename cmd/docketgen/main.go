package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docketgen/internal/assembler"
	"docketgen/internal/casefacts"
	"docketgen/internal/checker"
	"docketgen/internal/config"
	"docketgen/internal/evidence"
	"docketgen/internal/generator"
	"docketgen/internal/llm"
	"docketgen/internal/pagedoc"
)

var (
	rootCmd = &cobra.Command{
		Use:   "docketgen",
		Short: "Court-filing evidence package generator",
	}
	cfgPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to the YAML configuration")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(assembleCmd())
}

func loadChecker(cfg *config.Config) (*checker.Checker, error) {
	rules := checker.DefaultRules()
	if cfg.Checker.RulesFile != "" {
		loaded, err := checker.LoadRules(cfg.Checker.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return checker.New(rules)
}

func generateCmd() *cobra.Command {
	var factsPath, planPath, party string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate all evidence files, the index manifest, and the run report",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}
			facts, err := casefacts.LoadFacts(factsPath)
			if err != nil {
				log.Fatalf("Failed to load case facts: %v", err)
			}
			plan, groups, err := evidence.LoadPlan(planPath)
			if err != nil {
				log.Fatalf("Failed to load evidence plan: %v", err)
			}
			check, err := loadChecker(cfg)
			if err != nil {
				log.Fatalf("Failed to build placeholder checker: %v", err)
			}

			ctx := context.Background()
			gemini, err := llm.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model,
				time.Duration(cfg.AI.TimeoutSeconds)*time.Second, cfg.AI.TransportRetries)
			if err != nil {
				log.Fatalf("Failed to create LLM client: %v", err)
			}
			defer gemini.Close()

			gen := generator.New(gemini, check, cfg.Output.Dir, cfg.Generation.MaxRetries, cfg.Generation.Workers)
			fmt.Printf("Generating %s evidence from %s\n", party, planPath)

			idx, report, runErr := gen.GenerateAll(ctx, plan, facts, evidence.Party(party), groups)
			if report != nil {
				if err := report.Save(filepath.Join(cfg.Output.Dir, cfg.Output.Report)); err != nil {
					log.Printf("Failed to save run report: %v", err)
				}
				printSummary(report)
			}
			if runErr != nil && !errors.Is(runErr, generator.ErrRunFailed) {
				log.Fatalf("Generation aborted: %v", runErr)
			}
			if idx != nil && idx.TotalCount > 0 {
				manifest := filepath.Join(cfg.Output.Dir, cfg.Output.Manifest)
				if err := idx.Save(manifest); err != nil {
					log.Fatalf("Failed to save evidence index: %v", err)
				}
				fmt.Printf("Evidence index written to %s\n", manifest)
			}
			if runErr != nil {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&factsPath, "facts", "case_facts.json", "Resolved case facts JSON")
	cmd.Flags().StringVar(&planPath, "plan", "evidence_plan.json", "Evidence planning list JSON")
	cmd.Flags().StringVar(&party, "party", string(evidence.PartyPlaintiff), "Owning party to generate for (plaintiff/defendant)")
	return cmd
}

func printSummary(report *generator.RunReport) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	for _, it := range report.Items {
		if it.Status == generator.StatusSuccess {
			ok.Printf("  ✓ %s %s (attempts: %d)\n", it.ID, it.DisplayName, it.Attempts)
		} else {
			bad.Printf("  ✗ %s %s (attempts: %d)\n", it.ID, it.DisplayName, it.Attempts)
			if len(it.Placeholders) > 0 {
				warn.Printf("     placeholders: %v\n", it.Placeholders)
			}
		}
	}
	s := report.Summary
	fmt.Printf("Run %s: %d/%d succeeded (pass rate %.0f%%)\n", report.RunID, s.Succeeded, s.Total, s.PassRate*100)
}

func checkCmd() *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Check text files for placeholder or anonymization leakage",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rules := checker.DefaultRules()
			if rulesPath != "" {
				loaded, err := checker.LoadRules(rulesPath)
				if err != nil {
					log.Fatalf("Failed to load rules: %v", err)
				}
				rules = loaded
			}
			check, err := checker.New(rules)
			if err != nil {
				log.Fatalf("Failed to compile rules: %v", err)
			}

			dirty := 0
			for _, path := range args {
				clean, found, err := check.CheckFile(path)
				if err != nil {
					log.Fatalf("Failed to check %s: %v", path, err)
				}
				if clean {
					color.Green("✓ %s", path)
					continue
				}
				dirty++
				color.Red("✗ %s", path)
				for _, token := range found {
					fmt.Printf("    [%s] %s\n", check.Categorize(token), token)
				}
			}
			if dirty > 0 {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rule file overriding the defaults")
	return cmd
}

func assembleCmd() *cobra.Command {
	var indexPath, outPath, narrativeDir, coverTitle, caseNo string
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble the final PDF from an existing evidence index",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}
			idx, err := evidence.LoadIndex(indexPath)
			if err != nil {
				log.Fatalf("Failed to load evidence index: %v", err)
			}
			narrative, err := loadNarrative(narrativeDir)
			if err != nil {
				log.Fatalf("Failed to load narrative sections: %v", err)
			}

			opts := assembler.Options{
				Layout: pagedoc.Layout{
					LinesPerPage: cfg.PDF.LinesPerPage,
					WrapWidth:    cfg.PDF.WrapWidth,
					Cover:        cfg.PDF.Cover,
					TOC:          cfg.PDF.TOC,
				},
				CoverTitle: coverTitle,
				CaseNo:     caseNo,
				FontPath:   cfg.PDF.FontPath,
				FontName:   cfg.PDF.FontName,
				Validate:   true,
			}
			registry, err := assembler.Assemble(idx, narrative, opts, outPath)
			if err != nil {
				log.Fatalf("Failed to assemble PDF: %v", err)
			}
			fmt.Printf("Assembled %s: %d elements\n", outPath, len(registry))
			for _, e := range registry {
				fmt.Printf("  p.%-3d %s\n", e.StartPage, e.Title)
			}
		},
	}
	cmd.Flags().StringVar(&indexPath, "index", "outputs/evidence_index.json", "Evidence index manifest")
	cmd.Flags().StringVar(&outPath, "out", "outputs/docket.pdf", "Output PDF path")
	cmd.Flags().StringVar(&narrativeDir, "narrative", "", "Directory of pre-rendered narrative text files")
	cmd.Flags().StringVar(&coverTitle, "cover-title", "", "Cover title override")
	cmd.Flags().StringVar(&caseNo, "case-no", "", "Case number printed on the cover")
	return cmd
}

// loadNarrative reads pre-rendered narrative documents (complaint,
// procedural filings) from a directory, one .txt per section, ordered
// by file name. The first line of each file is its TOC title.
func loadNarrative(dir string) ([]assembler.Section, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var sections []assembler.Section
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		title, body := splitTitle(string(data))
		sections = append(sections, assembler.Section{
			Ref:   e.Name(),
			Title: title,
			Text:  body,
		})
	}
	return sections, nil
}

func splitTitle(text string) (string, string) {
	for i, r := range text {
		if r == '\n' {
			return text[:i], text[i+1:]
		}
	}
	return text, ""
}
