package policy

import "math"

// Decide maps a threat score to an action using t. Scores that are not
// finite or fall outside [0,1] are treated as scoring anomalies and fail
// closed to ActionQuarantine.
func (t Thresholds) Decide(score float64) Action {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return ActionQuarantine
	}
	switch {
	case score > t.Quarantine:
		return ActionQuarantine
	case score > t.Warn:
		return ActionSanitizeWarn
	case score > t.Log:
		return ActionSanitizeLog
	default:
		return ActionAllow
	}
}

// Decide maps score to an action with the default thresholds.
func Decide(score float64) Action {
	return DefaultThresholds.Decide(score)
}
