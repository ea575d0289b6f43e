package policy

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDecide_Tiers(t *testing.T) {
	tests := []struct {
		score float64
		want  Action
	}{
		{0, ActionAllow},
		{0.2, ActionAllow},
		{0.21, ActionSanitizeLog},
		{0.4, ActionSanitizeLog},
		{0.5, ActionSanitizeLog},
		{0.51, ActionSanitizeWarn},
		{0.7, ActionSanitizeWarn},
		{0.8, ActionSanitizeWarn},
		{0.81, ActionQuarantine},
		{0.85, ActionQuarantine},
		{1.0, ActionQuarantine},
	}

	for _, tt := range tests {
		if got := Decide(tt.score); got != tt.want {
			t.Errorf("Decide(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDecide_FailsClosedOnAnomalies(t *testing.T) {
	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.1, 1.01} {
		if got := Decide(score); got != ActionQuarantine {
			t.Errorf("Decide(%v) = %s, want QUARANTINE", score, got)
		}
	}
}

func TestDecide_CustomThresholds(t *testing.T) {
	th := Thresholds{Log: 0.1, Warn: 0.3, Quarantine: 0.6}
	if got := th.Decide(0.65); got != ActionQuarantine {
		t.Errorf("expected QUARANTINE, got %s", got)
	}
	if got := th.Decide(0.3); got != ActionSanitizeLog {
		t.Errorf("expected SANITIZE_LOG, got %s", got)
	}
}

func TestAction_Allowed(t *testing.T) {
	for _, a := range []Action{ActionAllow, ActionSanitizeLog, ActionSanitizeWarn} {
		if !a.Allowed() {
			t.Errorf("%s should be allowed", a)
		}
	}
	if ActionQuarantine.Allowed() {
		t.Error("QUARANTINE must not be allowed")
	}
}

func TestAction_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Action{"action": ActionSanitizeWarn})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"action":"SANITIZE_WARN"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var decoded map[string]Action
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["action"] != ActionSanitizeWarn {
		t.Errorf("round trip gave %s", decoded["action"])
	}

	if _, err := ParseAction("BLOCK"); err == nil {
		t.Error("expected error for unknown action")
	}
}
