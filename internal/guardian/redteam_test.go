package guardian

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gzhole/fortress/internal/policy"
)

func loadCorpus(t *testing.T) []CorpusCase {
	t.Helper()
	cases, err := DefaultCorpus()
	if err != nil {
		t.Fatalf("failed to load red-team corpus: %v", err)
	}
	return cases
}

// TestRedTeamCorpus runs every corpus case through the default policy and
// asserts the exact action and expected categories.
func TestRedTeamCorpus(t *testing.T) {
	g := newDefaultGuardian(t)

	results, err := g.RunCorpus(context.Background(), loadCorpus(t))
	if err != nil {
		t.Fatalf("RunCorpus: %v", err)
	}

	var passed int
	for _, r := range results {
		t.Run(r.Case.ID, func(t *testing.T) {
			if !r.Passed {
				t.Errorf("input: %q\n    %s\n    violations: %v",
					r.Case.Input, r.Reason, patternIDs(r.Result.Violations))
				return
			}
			passed++
		})
	}
	t.Logf("red-team corpus: %d/%d cases passed", passed, len(results))
}

func TestRedTeamCorpus_AttacksScoreHigh(t *testing.T) {
	g := newDefaultGuardian(t)

	for _, c := range loadCorpus(t) {
		if c.Expect != policy.ActionQuarantine {
			continue
		}
		t.Run(c.ID, func(t *testing.T) {
			res, err := g.ScanInput(context.Background(), c.Input, "")
			if err != nil {
				t.Fatalf("ScanInput: %v", err)
			}
			if res.ThreatScore < 0.7 {
				t.Errorf("score %.2f < 0.7", res.ThreatScore)
			}
			if res.Allowed {
				t.Error("quarantined input must not be allowed")
			}
			if res.Released() != "" {
				t.Errorf("quarantined text released: %q", res.Released())
			}
		})
	}
}

// Re-scanning sanitized text must not re-trigger the signatures that
// caused the sanitization.
func TestRedTeamCorpus_SanitizedTextDoesNotRetrigger(t *testing.T) {
	g := newDefaultGuardian(t)

	for _, c := range loadCorpus(t) {
		if c.Expect == policy.ActionAllow {
			continue
		}
		t.Run(c.ID, func(t *testing.T) {
			res, err := g.ScanInput(context.Background(), c.Input, "")
			if err != nil {
				t.Fatalf("ScanInput: %v", err)
			}
			again := g.Scanner().Scan(res.SanitizedText)
			before := map[string]bool{}
			for _, v := range res.Violations {
				before[v.PatternID] = true
			}
			for _, v := range again {
				if before[v.PatternID] {
					t.Errorf("%s re-triggered on sanitized text %q", v.PatternID, res.SanitizedText)
				}
			}
			for _, v := range res.Violations {
				for _, m := range v.MatchedText {
					if strings.Contains(res.SanitizedText, m) {
						t.Errorf("matched span %q survived sanitization", m)
					}
				}
			}
		})
	}
}

func TestMarkdownReport(t *testing.T) {
	g := newDefaultGuardian(t)
	results, err := g.RunCorpus(context.Background(), loadCorpus(t))
	if err != nil {
		t.Fatalf("RunCorpus: %v", err)
	}

	report := MarkdownReport(results)
	if !strings.Contains(report, "| `RT-001` |") {
		t.Errorf("report missing case row:\n%s", report)
	}
	if !strings.Contains(report, "cases passed") {
		t.Errorf("report missing summary:\n%s", report)
	}
}

func TestMarkdownReport_TruncatesOnRuneBoundary(t *testing.T) {
	input := strings.Repeat("a", 56) + strings.Repeat("\u00e9", 10)
	report := MarkdownReport([]CaseResult{{
		Case:   CorpusCase{ID: "X-1", Input: input, Expect: policy.ActionAllow},
		Result: AnalysisResult{Action: policy.ActionAllow},
		Passed: true,
	}})
	if !utf8.ValidString(report) {
		t.Fatalf("report is not valid UTF-8:\n%q", report)
	}
	want := strings.Repeat("a", 56) + "\u00e9..."
	if !strings.Contains(report, want) {
		t.Errorf("report missing truncated input %q:\n%s", want, report)
	}
}

func TestParseCorpus_Errors(t *testing.T) {
	if _, err := ParseCorpus([]byte("cases: []")); err == nil {
		t.Error("expected error for empty corpus")
	}
	if _, err := ParseCorpus([]byte("cases:\n  - id: X\n    expect: MAYBE\n")); err == nil {
		t.Error("expected error for unknown action")
	}
}

func patternIDs(vs []Violation) []string {
	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.PatternID)
	}
	return ids
}
