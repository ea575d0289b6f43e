package redact

import (
	"regexp"

	"github.com/gzhole/fortress/internal/policy"
)

// IssueType classifies an output validation finding.
type IssueType string

const (
	IssueSensitiveDataLeak IssueType = "SENSITIVE_DATA_LEAK"
	IssueRoleBreak         IssueType = "ROLE_BREAK"
)

// Issue is one output rule that matched model output.
type Issue struct {
	Type           IssueType       `json:"issue_type"`
	Severity       policy.Severity `json:"severity"`
	MatchedPattern string          `json:"matched_pattern"`
	Matches        int             `json:"matches"`
}

// Validation is the result of checking model output before release.
//
// IsSafe only turns false for CRITICAL issues. The default rules tag leaks
// HIGH and role breaks MEDIUM, so IsSafe stays true for them; callers that
// must block any leak gate on RequiresReview instead.
type Validation struct {
	IsSafe          bool    `json:"is_safe"`
	Issues          []Issue `json:"issues"`
	SanitizedOutput string  `json:"sanitized_output"`
	RequiresReview  bool    `json:"requires_review"`
}

// HasLeak reports whether any sensitive-data issue was found.
func (v Validation) HasLeak() bool {
	for _, iss := range v.Issues {
		if iss.Type == IssueSensitiveDataLeak {
			return true
		}
	}
	return false
}

type outputRule struct {
	id       string
	kind     IssueType
	severity policy.Severity
	re       *regexp.Regexp
}

// Validator scans model output for leaked secrets and role breaks.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	rules []outputRule
}

// NewValidator compiles the output rule families of a policy.
func NewValidator(rules policy.OutputRules) (*Validator, error) {
	v := &Validator{}
	families := []struct {
		kind IssueType
		fam  policy.OutputFamily
	}{
		{IssueSensitiveDataLeak, rules.Sensitive},
		{IssueRoleBreak, rules.RoleBreak},
	}
	for _, f := range families {
		for _, s := range f.fam.Rules {
			re, err := policy.CompilePattern(s.ID, s.Pattern, false)
			if err != nil {
				return nil, err
			}
			v.rules = append(v.rules, outputRule{id: s.ID, kind: f.kind, severity: f.fam.Severity, re: re})
		}
	}
	return v, nil
}

// Validate checks output against every rule. Each rule is matched against
// the original output; leak spans are then replaced with Placeholder in
// rule order. Role-break phrases are reported but left in place.
func (v *Validator) Validate(output string) Validation {
	result := Validation{
		IsSafe:          true,
		Issues:          []Issue{},
		SanitizedOutput: output,
	}

	for _, r := range v.rules {
		matches := r.re.FindAllStringIndex(output, -1)
		if len(matches) == 0 {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			Type:           r.kind,
			Severity:       r.severity,
			MatchedPattern: r.id,
			Matches:        len(matches),
		})
		if r.severity == policy.SeverityCritical {
			result.IsSafe = false
		}
		if r.kind == IssueSensitiveDataLeak {
			result.SanitizedOutput = r.re.ReplaceAllLiteralString(result.SanitizedOutput, Placeholder)
		}
	}

	result.RequiresReview = len(result.Issues) > 0
	return result
}
