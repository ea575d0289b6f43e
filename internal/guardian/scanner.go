package guardian

import (
	"fmt"
	"regexp"

	"github.com/gzhole/fortress/internal/policy"
)

// Scanner matches text against a compiled signature table. It holds no
// mutable state and is safe for concurrent use.
type Scanner struct {
	categories []compiledCategory
	byID       map[string]compiledSignature
}

type compiledCategory struct {
	name       policy.Category
	severity   policy.Severity
	signatures []compiledSignature
}

type compiledSignature struct {
	id      string
	re      *regexp.Regexp
	exclude *regexp.Regexp
}

// matches returns the matches of sig in text, minus the excluded ones.
func (sig compiledSignature) matches(text string) []string {
	all := sig.re.FindAllString(text, -1)
	if sig.exclude == nil {
		return all
	}
	kept := all[:0]
	for _, m := range all {
		if !sig.exclude.MatchString(m) {
			kept = append(kept, m)
		}
	}
	return kept
}

// replace substitutes Marker for every match that is not excluded.
func (sig compiledSignature) replace(text string) string {
	if sig.exclude == nil {
		return sig.re.ReplaceAllLiteralString(text, Marker)
	}
	return sig.re.ReplaceAllStringFunc(text, func(m string) string {
		if sig.exclude.MatchString(m) {
			return m
		}
		return Marker
	})
}

// NewScanner compiles every signature of p. A pattern that fails to compile
// or that matches Marker is a configuration error.
func NewScanner(p *policy.Policy) (*Scanner, error) {
	s := &Scanner{byID: make(map[string]compiledSignature)}

	for _, c := range p.Categories {
		if !c.Severity.Valid() {
			return nil, fmt.Errorf("category %q: unknown severity %q", c.Name, c.Severity)
		}
		cc := compiledCategory{name: c.Name, severity: c.Severity}
		for _, sig := range c.Signatures {
			re, err := policy.CompilePattern(sig.ID, sig.Pattern, c.Multiline)
			if err != nil {
				return nil, err
			}
			if re.MatchString(Marker) {
				return nil, fmt.Errorf("signature %q matches the sanitization marker %q", sig.ID, Marker)
			}
			if _, dup := s.byID[sig.ID]; dup {
				return nil, fmt.Errorf("duplicate signature id %q", sig.ID)
			}
			cs := compiledSignature{id: sig.ID, re: re}
			if sig.Exclude != "" {
				// Anchored so an exclusion only ever drops whole matches.
				cs.exclude, err = policy.CompilePattern(sig.ID+" exclude", `\A(?:`+sig.Exclude+`)\z`, false)
				if err != nil {
					return nil, err
				}
			}
			s.byID[sig.ID] = cs
			cc.signatures = append(cc.signatures, cs)
		}
		s.categories = append(s.categories, cc)
	}

	return s, nil
}

// Scan evaluates every signature in table order and returns one Violation
// per matching signature. An empty text yields no violations.
func (s *Scanner) Scan(text string) []Violation {
	if text == "" {
		return nil
	}

	var violations []Violation
	for _, c := range s.categories {
		for _, sig := range c.signatures {
			matches := sig.matches(text)
			if len(matches) == 0 {
				continue
			}
			violations = append(violations, Violation{
				Category:    c.name,
				PatternID:   sig.id,
				MatchedText: matches,
				Severity:    c.severity,
			})
		}
	}
	return violations
}

// Sanitize replaces every span matched by the violating signatures with
// Marker. Replacement runs in violation order, so when spans overlap the
// earlier category wins.
func (s *Scanner) Sanitize(text string, violations []Violation) string {
	out := text
	for _, v := range violations {
		sig, ok := s.byID[v.PatternID]
		if !ok {
			continue
		}
		out = sig.replace(out)
	}
	return out
}

// SignatureCount returns the number of compiled signatures.
func (s *Scanner) SignatureCount() int {
	return len(s.byID)
}
