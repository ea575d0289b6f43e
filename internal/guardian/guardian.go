package guardian

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/gzhole/fortress/internal/isolate"
	"github.com/gzhole/fortress/internal/logger"
	"github.com/gzhole/fortress/internal/policy"
	"github.com/gzhole/fortress/internal/profile"
	"github.com/gzhole/fortress/internal/redact"
)

// Guardian is the entry point for request handlers: it scans input, builds
// isolated prompts, validates model output and tracks repeat offenders.
type Guardian struct {
	scanner    *Scanner
	validator  *redact.Validator
	isolator   *isolate.Isolator
	thresholds policy.Thresholds

	profiles profile.Store
	sink     logger.Sink
	log      zerolog.Logger

	maxInputBytes int
	now           func() time.Time
}

// Option configures a Guardian.
type Option func(*Guardian)

// WithProfileStore sets the threat profile store. Default: an in-memory
// store with profile.DefaultCapacity and profile.DefaultTTL.
func WithProfileStore(s profile.Store) Option {
	return func(g *Guardian) { g.profiles = s }
}

// WithSink sets where security events go. Default: discarded.
func WithSink(s logger.Sink) Option {
	return func(g *Guardian) { g.sink = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Guardian) { g.log = l }
}

// WithMaxInputBytes rejects longer inputs with ErrInvalidInput. 0 disables the limit.
func WithMaxInputBytes(n int) Option {
	return func(g *Guardian) { g.maxInputBytes = n }
}

func WithIsolator(i *isolate.Isolator) Option {
	return func(g *Guardian) { g.isolator = i }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guardian) { g.now = now }
}

// New compiles p and returns a ready Guardian. Compilation problems are
// returned here, never at scan time.
func New(p *policy.Policy, opts ...Option) (*Guardian, error) {
	if p == nil {
		p = policy.DefaultPolicy()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	scanner, err := NewScanner(p)
	if err != nil {
		return nil, err
	}
	validator, err := redact.NewValidator(p.Output)
	if err != nil {
		return nil, err
	}

	g := &Guardian{
		scanner:    scanner,
		validator:  validator,
		thresholds: p.Thresholds,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.isolator == nil {
		g.isolator = isolate.NewWithClock(g.now)
	}
	if g.profiles == nil {
		g.profiles = profile.NewMemoryStore(profile.DefaultCapacity, profile.DefaultTTL)
	}
	if g.sink == nil {
		g.sink = logger.NopSink{}
	}
	return g, nil
}

// Scanner exposes the compiled signature table.
func (g *Guardian) Scanner() *Scanner {
	return g.scanner
}

// ScanInput scans text, decides the action and returns the result. When
// userID is non-empty and the text produced violations, the user's threat
// profile is updated. Profile and event sink failures are logged and do not
// affect the result.
func (g *Guardian) ScanInput(ctx context.Context, text, userID string) (AnalysisResult, error) {
	if err := g.checkInput(text); err != nil {
		return AnalysisResult{}, err
	}

	violations := g.scanner.Scan(text)
	score := Score(violations)
	action := g.thresholds.Decide(score)

	result := AnalysisResult{
		OriginalText:  text,
		Violations:    violations,
		ThreatScore:   score,
		SanitizedText: text,
		Action:        action,
		Allowed:       action.Allowed(),
	}
	if result.Violations == nil {
		result.Violations = []Violation{}
	}
	if action.Sanitizes() {
		result.SanitizedText = g.scanner.Sanitize(text, violations)
	}

	if userID != "" && len(violations) > 0 {
		if _, err := g.profiles.RecordAttempt(ctx, userID, distinctCategories(violations)); err != nil {
			g.log.Warn().Err(err).Str("user_id", userID).Msg("recording threat profile failed")
		}
	}

	g.report(userID, result)
	return result, nil
}

// BuildIsolatedPrompt renders userInput into a delimited data section
// after the system prompt and security directives.
func (g *Guardian) BuildIsolatedPrompt(systemPrompt string, priorTurns []string, userInput string) isolate.IsolatedContext {
	return g.isolator.Isolate(systemPrompt, priorTurns, userInput)
}

// ValidateOutput checks model output for leaked secrets and role breaks.
// A leak emits an output_leak security event.
func (g *Guardian) ValidateOutput(_ context.Context, text string) (redact.Validation, error) {
	if err := g.checkInput(text); err != nil {
		return redact.Validation{}, err
	}

	v := g.validator.Validate(text)
	if v.HasLeak() {
		ev := logger.NewEvent(logger.EventOutputLeak, g.now())
		ev.ContentHash = contentHash(text)
		if kinds := redact.Kinds(text); len(kinds) > 0 {
			ev.Note = "credential kinds: " + strings.Join(kinds, ", ")
		}
		for _, iss := range v.Issues {
			ev.Findings = append(ev.Findings, logger.Finding{
				Category:  string(iss.Type),
				PatternID: iss.MatchedPattern,
				Severity:  string(iss.Severity),
				Matches:   iss.Matches,
			})
		}
		g.emit(ev)
	}
	return v, nil
}

// GetUserThreatProfile returns the user's profile; unknown users get an
// empty LOW profile.
func (g *Guardian) GetUserThreatProfile(ctx context.Context, userID string) (profile.Profile, error) {
	return g.profiles.Get(ctx, userID)
}

// Close releases the profile store.
func (g *Guardian) Close() error {
	return g.profiles.Close()
}

func (g *Guardian) checkInput(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}
	if g.maxInputBytes > 0 && len(text) > g.maxInputBytes {
		return fmt.Errorf("%w: text is %d bytes, limit is %d", ErrInvalidInput, len(text), g.maxInputBytes)
	}
	return nil
}

func (g *Guardian) report(userID string, r AnalysisResult) {
	var kind logger.EventKind
	switch r.Action {
	case policy.ActionQuarantine:
		kind = logger.EventSuspiciousActivity
	case policy.ActionSanitizeWarn:
		kind = logger.EventPotentialInjection
	case policy.ActionSanitizeLog:
		g.log.Info().
			Str("user_id", userID).
			Float64("threat_score", r.ThreatScore).
			Int("violations", len(r.Violations)).
			Msg("input sanitized")
		return
	default:
		return
	}

	ev := logger.NewEvent(kind, g.now())
	ev.UserID = userID
	ev.Action = r.Action.String()
	ev.ThreatScore = r.ThreatScore
	ev.ContentHash = contentHash(r.OriginalText)
	for _, v := range r.Violations {
		ev.Findings = append(ev.Findings, logger.Finding{
			Category:  string(v.Category),
			PatternID: v.PatternID,
			Severity:  string(v.Severity),
			Matches:   len(v.MatchedText),
		})
	}
	g.emit(ev)
}

func (g *Guardian) emit(ev logger.SecurityEvent) {
	if err := g.sink.Emit(ev); err != nil {
		g.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("emitting security event failed")
	}
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
