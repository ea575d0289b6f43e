package policy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// DefaultThresholds are the tier boundaries used when a policy omits them.
var DefaultThresholds = Thresholds{Log: 0.2, Warn: 0.5, Quarantine: 0.8}

// Load reads a policy file. A missing file yields the embedded default.
func Load(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding policy: %w", err)
	}

	if p.Thresholds == (Thresholds{}) {
		p.Thresholds = DefaultThresholds
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPolicy returns a fresh copy of the embedded default table.
func DefaultPolicy() *Policy {
	var p Policy
	if err := yaml.Unmarshal(defaultPolicyYAML, &p); err != nil {
		panic(fmt.Sprintf("embedded default policy is invalid: %v", err))
	}
	return &p
}

// merge lays overlay on top of p: categories with the same name get the
// overlay's signatures appended, new categories are appended in order.
func (p *Policy) merge(overlay *Policy) *Policy {
	out := *p
	if overlay.Version != "" {
		out.Version = overlay.Version
	}
	if overlay.Thresholds != (Thresholds{}) {
		out.Thresholds = overlay.Thresholds
	}

	out.Categories = make([]CategoryRules, len(p.Categories))
	copy(out.Categories, p.Categories)
	for _, oc := range overlay.Categories {
		idx := -1
		for i := range out.Categories {
			if out.Categories[i].Name == oc.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Categories = append(out.Categories, oc)
			continue
		}
		existing := out.Categories[idx]
		existing.Signatures = append(append([]Signature{}, existing.Signatures...), oc.Signatures...)
		out.Categories[idx] = existing
	}

	out.Output.Sensitive.Rules = append(append([]Signature{}, p.Output.Sensitive.Rules...), overlay.Output.Sensitive.Rules...)
	out.Output.RoleBreak.Rules = append(append([]Signature{}, p.Output.RoleBreak.Rules...), overlay.Output.RoleBreak.Rules...)
	if overlay.Output.Sensitive.Severity != "" {
		out.Output.Sensitive.Severity = overlay.Output.Sensitive.Severity
	}
	if overlay.Output.RoleBreak.Severity != "" {
		out.Output.RoleBreak.Severity = overlay.Output.RoleBreak.Severity
	}
	return &out
}

// Validate checks structural constraints that regex compilation cannot:
// threshold ordering, unique identifiers and known severities.
func (p *Policy) Validate() error {
	t := p.Thresholds
	if !(t.Log >= 0 && t.Log < t.Warn && t.Warn < t.Quarantine && t.Quarantine <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 <= log < warn < quarantine <= 1, got %.2f/%.2f/%.2f",
			t.Log, t.Warn, t.Quarantine)
	}

	seenCategory := map[Category]bool{}
	seenID := map[string]bool{}
	for _, c := range p.Categories {
		if c.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seenCategory[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seenCategory[c.Name] = true
		if !c.Severity.Valid() {
			return fmt.Errorf("category %q: unknown severity %q", c.Name, c.Severity)
		}
		if len(c.Signatures) == 0 {
			return fmt.Errorf("category %q has no signatures", c.Name)
		}
		for _, s := range c.Signatures {
			if err := checkSignature(s, seenID); err != nil {
				return fmt.Errorf("category %q: %w", c.Name, err)
			}
		}
	}

	families := []struct {
		name string
		fam  OutputFamily
	}{
		{"sensitive", p.Output.Sensitive},
		{"role_break", p.Output.RoleBreak},
	}
	for _, f := range families {
		name, fam := f.name, f.fam
		if len(fam.Rules) == 0 {
			continue
		}
		if !fam.Severity.Valid() {
			return fmt.Errorf("output %s: unknown severity %q", name, fam.Severity)
		}
		for _, s := range fam.Rules {
			if err := checkSignature(s, seenID); err != nil {
				return fmt.Errorf("output %s: %w", name, err)
			}
			if s.Exclude != "" {
				return fmt.Errorf("output %s: rule %q: exclude is only supported on input signatures", name, s.ID)
			}
		}
	}
	return nil
}

func checkSignature(s Signature, seen map[string]bool) error {
	if s.ID == "" {
		return fmt.Errorf("signature with empty id (pattern %q)", s.Pattern)
	}
	if s.Pattern == "" {
		return fmt.Errorf("signature %q has an empty pattern", s.ID)
	}
	if seen[s.ID] {
		return fmt.Errorf("duplicate signature id %q", s.ID)
	}
	seen[s.ID] = true
	return nil
}

// CategorySeverity returns the severity declared for category c.
func (p *Policy) CategorySeverity(c Category) (Severity, bool) {
	for _, cr := range p.Categories {
		if cr.Name == c {
			return cr.Severity, true
		}
	}
	return "", false
}
