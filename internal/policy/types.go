package policy

import "fmt"

// Severity ranks how dangerous a matched category is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var severityWeights = map[Severity]float64{
	SeverityCritical: 1.0,
	SeverityHigh:     0.7,
	SeverityMedium:   0.4,
	SeverityLow:      0.2,
}

// Weight returns the scoring weight of s. Unknown severities report ok=false.
func (s Severity) Weight() (float64, bool) {
	w, ok := severityWeights[s]
	return w, ok
}

func (s Severity) Valid() bool {
	_, ok := severityWeights[s]
	return ok
}

// Category names a family of attack signatures. The seven built-in
// categories are listed below; policy files may declare more.
type Category string

const (
	CategoryInstructionOverride   Category = "instruction_override"
	CategoryRoleManipulation      Category = "role_manipulation"
	CategoryPromptExtraction      Category = "prompt_extraction"
	CategoryDelimiterAttack       Category = "delimiter_attack"
	CategoryEncodingBypass        Category = "encoding_bypass"
	CategoryContextManipulation   Category = "context_manipulation"
	CategoryEmotionalManipulation Category = "emotional_manipulation"
)

// BuiltinCategories is the fixed evaluation order of the default table.
var BuiltinCategories = []Category{
	CategoryInstructionOverride,
	CategoryRoleManipulation,
	CategoryPromptExtraction,
	CategoryDelimiterAttack,
	CategoryEncodingBypass,
	CategoryContextManipulation,
	CategoryEmotionalManipulation,
}

// Action is the response tier chosen for a scanned input.
type Action int

const (
	ActionAllow Action = iota
	ActionSanitizeLog
	ActionSanitizeWarn
	ActionQuarantine
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "ALLOW"
	case ActionSanitizeLog:
		return "SANITIZE_LOG"
	case ActionSanitizeWarn:
		return "SANITIZE_WARN"
	case ActionQuarantine:
		return "QUARANTINE"
	default:
		return "UNKNOWN"
	}
}

// Allowed reports whether input under this action may be released.
func (a Action) Allowed() bool {
	return a != ActionQuarantine
}

// Sanitizes reports whether the action returns sanitized rather than original text.
func (a Action) Sanitizes() bool {
	return a == ActionSanitizeLog || a == ActionSanitizeWarn || a == ActionQuarantine
}

func (a Action) MarshalText() ([]byte, error) {
	if a < ActionAllow || a > ActionQuarantine {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction converts the textual form back into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "ALLOW":
		return ActionAllow, nil
	case "SANITIZE_LOG":
		return ActionSanitizeLog, nil
	case "SANITIZE_WARN":
		return ActionSanitizeWarn, nil
	case "QUARANTINE":
		return ActionQuarantine, nil
	default:
		return ActionQuarantine, fmt.Errorf("unknown action %q", s)
	}
}

// Policy is the declarative rule table: scoring thresholds, input
// signatures grouped by category, and output validation rules.
type Policy struct {
	Version    string          `yaml:"version"`
	Thresholds Thresholds      `yaml:"thresholds"`
	Categories []CategoryRules `yaml:"categories"`
	Output     OutputRules     `yaml:"output"`
}

// Thresholds are the exclusive lower bounds of each non-ALLOW tier.
type Thresholds struct {
	Log        float64 `yaml:"log"`
	Warn       float64 `yaml:"warn"`
	Quarantine float64 `yaml:"quarantine"`
}

// CategoryRules is one category of input signatures. Every signature in
// the category shares the category's severity.
type CategoryRules struct {
	Name       Category    `yaml:"name"`
	Severity   Severity    `yaml:"severity"`
	Multiline  bool        `yaml:"multiline,omitempty"`
	Signatures []Signature `yaml:"signatures"`
}

// Signature is a single regular expression with a stable identifier.
// A match that Exclude matches in full is ignored.
type Signature struct {
	ID          string `yaml:"id"`
	Pattern     string `yaml:"pattern"`
	Exclude     string `yaml:"exclude,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// OutputRules groups the two output rule families.
type OutputRules struct {
	Sensitive OutputFamily `yaml:"sensitive"`
	RoleBreak OutputFamily `yaml:"role_break"`
}

// OutputFamily is a set of output rules sharing one severity.
type OutputFamily struct {
	Severity Severity    `yaml:"severity"`
	Rules    []Signature `yaml:"rules"`
}
