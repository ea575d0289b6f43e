package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	if len(p.Categories) != len(BuiltinCategories) {
		t.Fatalf("expected %d categories, got %d", len(BuiltinCategories), len(p.Categories))
	}
	for i, c := range p.Categories {
		if c.Name != BuiltinCategories[i] {
			t.Errorf("category %d = %q, want %q", i, c.Name, BuiltinCategories[i])
		}
	}
	if p.Thresholds != DefaultThresholds {
		t.Errorf("default thresholds = %+v", p.Thresholds)
	}
}

func TestDefaultPolicy_MultilineCategories(t *testing.T) {
	p := DefaultPolicy()
	for _, c := range p.Categories {
		want := c.Name == CategoryDelimiterAttack || c.Name == CategoryEncodingBypass
		if c.Multiline != want {
			t.Errorf("category %q multiline = %v, want %v", c.Name, c.Multiline, want)
		}
	}
}

func TestDefaultPolicy_OutputSeverities(t *testing.T) {
	p := DefaultPolicy()
	if p.Output.Sensitive.Severity != SeverityHigh {
		t.Errorf("sensitive severity = %s", p.Output.Sensitive.Severity)
	}
	if p.Output.RoleBreak.Severity != SeverityMedium {
		t.Errorf("role break severity = %s", p.Output.RoleBreak.Severity)
	}
}

func TestLoad_MissingFileFallsBackToDefault(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Categories) != len(BuiltinCategories) {
		t.Errorf("expected default policy")
	}
}

func TestLoad_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
version: "2"
categories:
  - name: competitor_mention
    severity: LOW
    signatures:
      - id: competitor.acme
        pattern: 'acme\s+corp'
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Version != "2" {
		t.Errorf("version = %q", p.Version)
	}
	if p.Thresholds != DefaultThresholds {
		t.Errorf("omitted thresholds should default, got %+v", p.Thresholds)
	}
	sev, ok := p.CategorySeverity("competitor_mention")
	if !ok || sev != SeverityLow {
		t.Errorf("CategorySeverity = %s, %v", sev, ok)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "bad thresholds",
			doc: `
thresholds: {log: 0.5, warn: 0.4, quarantine: 0.8}
categories:
  - name: a
    severity: LOW
    signatures: [{id: a.1, pattern: x}]
`,
			wantErr: "thresholds",
		},
		{
			name: "unknown severity",
			doc: `
categories:
  - name: a
    severity: SEVERE
    signatures: [{id: a.1, pattern: x}]
`,
			wantErr: "unknown severity",
		},
		{
			name: "duplicate id",
			doc: `
categories:
  - name: a
    severity: LOW
    signatures: [{id: dup, pattern: x}, {id: dup, pattern: y}]
`,
			wantErr: "duplicate signature id",
		},
		{
			name: "duplicate category",
			doc: `
categories:
  - name: a
    severity: LOW
    signatures: [{id: a.1, pattern: x}]
  - name: a
    severity: LOW
    signatures: [{id: a.2, pattern: y}]
`,
			wantErr: "duplicate category",
		},
		{
			name: "empty category",
			doc: `
categories:
  - name: a
    severity: LOW
`,
			wantErr: "no signatures",
		},
		{
			name: "exclude on output rule",
			doc: `
categories:
  - name: a
    severity: LOW
    signatures: [{id: a.1, pattern: x}]
output:
  sensitive:
    severity: HIGH
    rules: [{id: leak.x, pattern: 'secret=\S+', exclude: 'secret=none'}]
`,
			wantErr: "exclude is only supported",
		},
		{
			name:    "malformed yaml",
			doc:     "categories: [",
			wantErr: "decoding policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
