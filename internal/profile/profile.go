// Package profile tracks repeat injection attempts per user.
package profile

import (
	"context"
	"time"

	"github.com/gzhole/fortress/internal/policy"
)

// RiskLevel summarises how persistent a user's attempts have been.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	highRiskAttempts   = 3
	highRiskCategories = 2
	mediumRiskAttempts = 2
)

const (
	DefaultCapacity = 10000
	DefaultTTL      = 24 * time.Hour
)

// Profile is a snapshot of one user's recorded attempts. Stores return
// copies; mutating a Profile never affects stored state.
type Profile struct {
	UserID             string                  `json:"user_id"`
	AttemptsByCategory map[policy.Category]int `json:"attempts_by_category"`
	TotalAttempts      int                     `json:"total_attempts"`
	RiskLevel          RiskLevel               `json:"risk_level"`
	LastSeen           time.Time               `json:"last_seen,omitempty"`
}

// Empty returns the profile of a user with no recorded attempts.
func Empty(userID string) Profile {
	return Profile{
		UserID:             userID,
		AttemptsByCategory: map[policy.Category]int{},
		RiskLevel:          RiskLow,
	}
}

// DeriveRisk maps attempt totals to a risk level.
func DeriveRisk(totalAttempts, distinctCategories int) RiskLevel {
	switch {
	case totalAttempts >= highRiskAttempts && distinctCategories >= highRiskCategories:
		return RiskHigh
	case totalAttempts >= mediumRiskAttempts || distinctCategories >= highRiskCategories:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (p Profile) clone() Profile {
	out := p
	out.AttemptsByCategory = make(map[policy.Category]int, len(p.AttemptsByCategory))
	for k, v := range p.AttemptsByCategory {
		out.AttemptsByCategory[k] = v
	}
	return out
}

// apply records one attempt spanning the given categories.
func (p *Profile) apply(categories []policy.Category, at time.Time) {
	if p.AttemptsByCategory == nil {
		p.AttemptsByCategory = map[policy.Category]int{}
	}
	seen := map[policy.Category]bool{}
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		p.AttemptsByCategory[c]++
	}
	p.TotalAttempts++
	p.LastSeen = at
	p.RiskLevel = DeriveRisk(p.TotalAttempts, len(p.AttemptsByCategory))
}

// Store persists threat profiles. Implementations must be safe for
// concurrent use; RecordAttempt is an atomic read-modify-write.
type Store interface {
	// RecordAttempt adds one attempt for userID. Each distinct category
	// adds one to its counter. It returns the updated profile.
	RecordAttempt(ctx context.Context, userID string, categories []policy.Category) (Profile, error)

	// Get returns the profile for userID, or Empty(userID) if unknown.
	Get(ctx context.Context, userID string) (Profile, error)

	// Close releases resources held by the store.
	Close() error
}
