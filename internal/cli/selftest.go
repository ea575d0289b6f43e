package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/guardian"
)

var (
	selftestCorpus string
	selftestReport string
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Self-test - run the red-team corpus against the loaded policy",
	Long: `Run a quick diagnostic that scans a corpus of known attacks and benign
prompts with the effective policy and checks every decision. Nothing is sent
to a model and no threat profiles are updated.

  fortress selftest
  fortress selftest --corpus my-cases.yaml --report REDTEAM_REPORT.md`,
	RunE: selftestCommand,
}

func init() {
	selftestCmd.Flags().StringVar(&selftestCorpus, "corpus", "", "Corpus YAML file (default: built-in)")
	selftestCmd.Flags().StringVar(&selftestReport, "report", "", "Also write a markdown report to this path")
	rootCmd.AddCommand(selftestCmd)
}

func selftestCommand(cmd *cobra.Command, args []string) error {
	cases, err := loadSelftestCorpus()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.guardian.RunCorpus(cmd.Context(), cases)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  Fortress Self-Test")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	passed := 0
	for _, r := range results {
		icon := "\xe2\x9c\x85" // ✅
		if r.Passed {
			passed++
		} else {
			icon = "\xe2\x9d\x8c" // ❌
		}
		fmt.Fprintf(out, "  %s  %-7s %-14s %.2f  %s\n", icon, r.Case.ID, r.Result.Action, r.Result.ThreatScore, shorten(r.Case.Input, 50))
		if !r.Passed {
			fmt.Fprintf(out, "              %s\n", r.Reason)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	failed := len(results) - passed
	if failed == 0 {
		fmt.Fprintf(out, "  \xe2\x9c\x85 All %d cases passed\n", len(results))
	} else {
		fmt.Fprintf(out, "  \xe2\x9a\xa0  %d/%d cases passed, %d failed\n", passed, len(results), failed)
		fmt.Fprintln(out, "  Review your policy configuration.")
	}
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")

	if selftestReport != "" {
		if err := os.WriteFile(selftestReport, []byte(guardian.MarkdownReport(results)), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(out, "\nReport written to %s\n", selftestReport)
	}

	if failed > 0 {
		return fmt.Errorf("%d self-test cases failed", failed)
	}
	return nil
}

func loadSelftestCorpus() ([]guardian.CorpusCase, error) {
	if selftestCorpus == "" {
		return guardian.DefaultCorpus()
	}
	data, err := os.ReadFile(selftestCorpus)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return guardian.ParseCorpus(data)
}

func shorten(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return string(r)
}
