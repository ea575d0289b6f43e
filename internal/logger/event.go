package logger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventKind names the type of a security event.
type EventKind string

const (
	EventSuspiciousActivity EventKind = "suspicious_activity"
	EventPotentialInjection EventKind = "potential_injection"
	EventOutputLeak         EventKind = "output_leak"
)

// Finding summarises one matched signature or output rule. Matched text is
// never recorded; only the number of matches.
type Finding struct {
	Category  string `json:"category"`
	PatternID string `json:"pattern_id"`
	Severity  string `json:"severity"`
	Matches   int    `json:"matches"`
}

// SecurityEvent is one record in the security event stream.
type SecurityEvent struct {
	ID          string    `json:"id"`
	Timestamp   string    `json:"timestamp"`
	Kind        EventKind `json:"kind"`
	UserID      string    `json:"user_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	ThreatScore float64   `json:"threat_score"`
	ContentHash string    `json:"content_hash,omitempty"`
	Findings    []Finding `json:"findings,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// NewEvent returns an event of the given kind with a fresh id and timestamp.
func NewEvent(kind EventKind, at time.Time) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: at.UTC().Format(time.RFC3339),
		Kind:      kind,
	}
}

// Sink receives security events.
type Sink interface {
	Emit(event SecurityEvent) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(SecurityEvent) error { return nil }

// MultiSink emits to every sink, joining their errors.
type MultiSink []Sink

func (m MultiSink) Emit(event SecurityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ZerologSink writes events as structured log lines. suspicious_activity
// is logged at error level, everything else at warn.
type ZerologSink struct {
	Logger zerolog.Logger
}

func (z ZerologSink) Emit(event SecurityEvent) error {
	ev := z.Logger.Warn()
	if event.Kind == EventSuspiciousActivity {
		ev = z.Logger.Error()
	}

	patterns := make([]string, 0, len(event.Findings))
	for _, f := range event.Findings {
		patterns = append(patterns, f.PatternID)
	}

	ev.Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("user_id", event.UserID).
		Str("action", event.Action).
		Float64("threat_score", event.ThreatScore).
		Strs("patterns", patterns).
		Msg("security event")
	return nil
}
