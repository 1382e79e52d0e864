package fees

import (
	"context"
	"errors"

	"payrail/internal/models"
	"payrail/internal/repositories"
)

var ErrNoTiers = errors.New("tier table is empty")

// Resolver derives a merchant's current pricing tier from trailing
// metrics. Resolution is instantaneous: there is no hysteresis, so a
// merchant can change tiers between consecutive transactions.
type Resolver struct {
	tiers repositories.TierRepository
}

func NewResolver(tiers repositories.TierRepository) *Resolver {
	if tiers == nil {
		panic("tier repository is required")
	}
	return &Resolver{tiers: tiers}
}

// Resolve returns the highest-ranked tier whose volume, count and
// account-age thresholds are all met, defaulting to the lowest tier.
func (r *Resolver) Resolve(ctx context.Context, m models.MerchantMetrics) (*models.Tier, error) {
	tiers, err := r.tiers.ListByRankDesc(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveTier(tiers, m)
}

// ResolveTier scans tiers ordered highest rank first and returns the
// first fully satisfied one. Exposed separately so the scan is testable
// without a repository.
func ResolveTier(tiersByRankDesc []models.Tier, m models.MerchantMetrics) (*models.Tier, error) {
	if len(tiersByRankDesc) == 0 {
		return nil, ErrNoTiers
	}

	for i := range tiersByRankDesc {
		if tiersByRankDesc[i].Qualifies(m) {
			return &tiersByRankDesc[i], nil
		}
	}

	// No tier qualified; fall back to the lowest rank.
	return &tiersByRankDesc[len(tiersByRankDesc)-1], nil
}

// ScheduleFor converts a tier row into a calculator schedule.
func ScheduleFor(tier *models.Tier) Schedule {
	sched := Schedule{
		Percent: tier.FeePercent,
		Minimum: tier.FeeMinimum,
		Maximum: tier.FeeMaximum,
	}
	if tier.FeeFixed.Valid {
		fixed := tier.FeeFixed.Decimal
		sched.Fixed = &fixed
	}
	return sched
}
