package guardian

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/fortress/internal/policy"
)

//go:embed corpus.yaml
var corpusYAML []byte

// CorpusCase is one red-team regression input.
type CorpusCase struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Input       string            `yaml:"input"`
	Expect      policy.Action     `yaml:"expect"`
	Categories  []policy.Category `yaml:"categories"`
}

type corpusFile struct {
	Cases []CorpusCase `yaml:"cases"`
}

// CaseResult is the outcome of running one CorpusCase.
type CaseResult struct {
	Case   CorpusCase
	Result AnalysisResult
	Passed bool
	Reason string
}

// DefaultCorpus returns the built-in red-team corpus.
func DefaultCorpus() ([]CorpusCase, error) {
	return ParseCorpus(corpusYAML)
}

// ParseCorpus decodes a corpus file.
func ParseCorpus(data []byte) ([]CorpusCase, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing corpus: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("parsing corpus: no cases")
	}
	return f.Cases, nil
}

// RunCorpus scans every case anonymously and checks the action and the
// expected categories.
func (g *Guardian) RunCorpus(ctx context.Context, cases []CorpusCase) ([]CaseResult, error) {
	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		res, err := g.ScanInput(ctx, c.Input, "")
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, err)
		}

		cr := CaseResult{Case: c, Result: res, Passed: true}
		got := res.Categories()
		switch {
		case res.Action != c.Expect:
			cr.Passed = false
			cr.Reason = fmt.Sprintf("action %s, want %s (score %.2f)", res.Action, c.Expect, res.ThreatScore)
		default:
			for _, want := range c.Categories {
				if !slices.Contains(got, want) {
					cr.Passed = false
					cr.Reason = fmt.Sprintf("missing category %s", want)
					break
				}
			}
		}
		results = append(results, cr)
	}
	return results, nil
}

// MarkdownReport renders corpus results as a markdown table.
func MarkdownReport(results []CaseResult) string {
	var sb strings.Builder
	sb.WriteString("# Fortress Red-Team Report\n\n")
	sb.WriteString("| Case | Input | Expect | Got | Score | Categories | Status |\n")
	sb.WriteString("|------|-------|--------|-----|-------|------------|--------|\n")

	passed := 0
	for _, r := range results {
		status := "PASS"
		if r.Passed {
			passed++
		} else {
			status = "FAIL (" + r.Reason + ")"
		}

		input := truncateRunes(strings.ReplaceAll(r.Case.Input, "\n", " "), 60)
		cats := make([]string, 0, len(r.Result.Violations))
		for _, c := range r.Result.Categories() {
			cats = append(cats, string(c))
		}
		catList := strings.Join(cats, ", ")
		if catList == "" {
			catList = "(none)"
		}

		fmt.Fprintf(&sb, "| `%s` | `%s` | %s | %s | %.2f | %s | %s |\n",
			r.Case.ID, strings.ReplaceAll(input, "|", "\\|"), r.Case.Expect, r.Result.Action,
			r.Result.ThreatScore, catList, status)
	}

	if len(results) > 0 {
		fmt.Fprintf(&sb, "\n**%d/%d cases passed (%0.1f%%)**\n",
			passed, len(results), float64(passed)/float64(len(results))*100)
	}
	return sb.String()
}

// truncateRunes shortens s to at most n runes, ending in "..." when cut.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
