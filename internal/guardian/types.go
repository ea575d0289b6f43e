// Package guardian detects prompt injection in untrusted input and decides
// how to respond to it.
//
// Architecture:
//
//	Scanner   - compiled signature table, one Violation per matching signature
//	Score     - mean severity weight of the violations, in [0,1]
//	policy    - thresholds map the score to an Action
//	Guardian  - facade wiring scanner, scorer, isolator, output validator,
//	            threat profiles and the security event sink
package guardian

import (
	"errors"

	"github.com/gzhole/fortress/internal/policy"
)

// Marker replaces every blocked span in sanitized text. No signature may
// match it, so re-scanning sanitized text does not re-trigger a pattern.
const Marker = "[BLOCKED]"

// ErrInvalidInput is returned before scanning when text cannot be scanned:
// it is not valid UTF-8 or exceeds the configured size limit.
var ErrInvalidInput = errors.New("invalid input")

// Violation is one signature that matched the scanned text.
type Violation struct {
	Category policy.Category `json:"category"`

	// PatternID identifies the signature that matched.
	PatternID string `json:"pattern_id"`

	// MatchedText holds every substring the signature matched, in order.
	MatchedText []string `json:"matched_text"`

	// Severity always equals the severity declared for Category.
	Severity policy.Severity `json:"severity"`
}

// AnalysisResult is the outcome of scanning one input. It is built fresh
// for every call and never modified afterwards.
type AnalysisResult struct {
	OriginalText  string        `json:"original_text"`
	Violations    []Violation   `json:"violations"`
	ThreatScore   float64       `json:"threat_score"`
	SanitizedText string        `json:"sanitized_text"`
	Action        policy.Action `json:"action"`
	Allowed       bool          `json:"allowed"`
}

// Released returns the text a caller may forward: the original for ALLOW,
// the sanitized text for SANITIZE_*, nothing for QUARANTINE.
func (r AnalysisResult) Released() string {
	switch r.Action {
	case policy.ActionAllow:
		return r.OriginalText
	case policy.ActionSanitizeLog, policy.ActionSanitizeWarn:
		return r.SanitizedText
	case policy.ActionQuarantine:
		return ""
	default:
		return ""
	}
}

// Categories returns the distinct categories among the violations, in
// first-seen order.
func (r AnalysisResult) Categories() []policy.Category {
	return distinctCategories(r.Violations)
}

func distinctCategories(violations []Violation) []policy.Category {
	var out []policy.Category
	seen := map[policy.Category]bool{}
	for _, v := range violations {
		if !seen[v.Category] {
			seen[v.Category] = true
			out = append(out, v.Category)
		}
	}
	return out
}
