package limits

import (
	"time"

	"propshare-backend/internal/config"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReasonOK                = "ok"
	ReasonUnknownTier       = "unknown_tier"
	ReasonSingleCeiling     = "single_transaction_ceiling"
	ReasonDailyCeiling      = "daily_ceiling"
	ReasonNonPositiveAmount = "non_positive_amount"
)

// Decision is the result of a limit check. Remaining is the daily allowance
// left before the proposed amount is applied.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Remaining decimal.Decimal `json:"remaining"`
	Reason    string          `json:"reason"`
}

// Policy maps user tiers to withdrawal ceilings and checks proposed exits
// against the user's activity in the current UTC day.
type Policy struct {
	Tiers map[string]config.TierLimit
	Now   func() time.Time
}

// NewPolicy returns a policy over tiers, falling back to config.DefaultLimits.
func NewPolicy(tiers map[string]config.TierLimit) *Policy {
	if len(tiers) == 0 {
		tiers = config.DefaultLimits()
	}
	return &Policy{Tiers: tiers, Now: time.Now}
}

func (p *Policy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Limit returns the ceilings for tier.
func (p *Policy) Limit(tier string) (config.TierLimit, bool) {
	l, ok := p.Tiers[tier]
	return l, ok
}

// DayWindow returns [start of day, start of next day) in UTC for t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// UsedToday sums the requested amounts of the user's exit requests in today's
// window whose status still counts against the allowance. db may be a transaction.
func (p *Policy) UsedToday(db *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	start, end := DayWindow(p.now())
	var amounts []decimal.Decimal
	err := db.Model(&domain.ExitRequest{}).
		Where("user_id = ? AND requested_at >= ? AND requested_at < ? AND status IN ?",
			userID, start, end, domain.CountedExitStatuses).
		Pluck("requested_amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum, nil
}

// CheckExitAllowed evaluates amount against tier's ceilings. Call it on the
// same transaction that creates the exit request.
func (p *Policy) CheckExitAllowed(db *gorm.DB, userID uuid.UUID, tier string, amount decimal.Decimal) (Decision, error) {
	limit, ok := p.Limit(tier)
	if !ok {
		return Decision{Remaining: decimal.Zero, Reason: ReasonUnknownTier}, nil
	}
	used, err := p.UsedToday(db, userID)
	if err != nil {
		return Decision{Remaining: decimal.Zero, Reason: "lookup_failed"}, err
	}
	remaining := limit.Daily.Sub(used)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	switch {
	case !amount.IsPositive():
		return Decision{Remaining: remaining, Reason: ReasonNonPositiveAmount}, nil
	case amount.GreaterThan(limit.Single):
		return Decision{Remaining: remaining, Reason: ReasonSingleCeiling}, nil
	case used.Add(amount).GreaterThan(limit.Daily):
		return Decision{Remaining: remaining, Reason: ReasonDailyCeiling}, nil
	}
	return Decision{Allowed: true, Remaining: remaining, Reason: ReasonOK}, nil
}
