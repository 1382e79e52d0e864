package fees

import (
	"testing"

	"payrail/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladder() []models.Tier {
	// Highest rank first, the order ListByRankDesc returns.
	return []models.Tier{
		{
			Name:              models.TierEnterprise,
			Rank:              4,
			FeePercent:        dec("1.5"),
			MinVolume30d:      dec("50000000"),
			MinCount30d:       1000,
			MinAccountAgeDays: 180,
		},
		{
			Name:              models.TierPremium,
			Rank:              3,
			FeePercent:        dec("2.0"),
			MinVolume30d:      dec("5000000"),
			MinCount30d:       250,
			MinAccountAgeDays: 90,
		},
		{
			Name:              models.TierStandard,
			Rank:              2,
			FeePercent:        dec("2.5"),
			MinVolume30d:      dec("500000"),
			MinCount30d:       50,
			MinAccountAgeDays: 30,
		},
		{
			Name:       models.TierBasic,
			Rank:       1,
			FeePercent: dec("3.0"),
		},
	}
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		name    string
		metrics models.MerchantMetrics
		want    string
	}{
		{
			name:    "new merchant lands on lowest tier",
			metrics: models.MerchantMetrics{},
			want:    models.TierBasic,
		},
		{
			name: "volume alone is not enough",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("10000000"),
				PaidCount30d:   10,
				AccountAgeDays: 365,
			},
			want: models.TierBasic,
		},
		{
			name: "count alone is not enough",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("100000"),
				PaidCount30d:   5000,
				AccountAgeDays: 365,
			},
			want: models.TierBasic,
		},
		{
			name: "age alone is not enough",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("100"),
				PaidCount30d:   1,
				AccountAgeDays: 1000,
			},
			want: models.TierBasic,
		},
		{
			name: "all thresholds met picks the highest qualifying tier",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("6000000"),
				PaidCount30d:   300,
				AccountAgeDays: 120,
			},
			want: models.TierPremium,
		},
		{
			name: "thresholds are inclusive",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("500000"),
				PaidCount30d:   50,
				AccountAgeDays: 30,
			},
			want: models.TierStandard,
		},
		{
			name: "top of the ladder",
			metrics: models.MerchantMetrics{
				PaidVolume30d:  dec("90000000"),
				PaidCount30d:   2000,
				AccountAgeDays: 400,
			},
			want: models.TierEnterprise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, err := ResolveTier(ladder(), tt.metrics)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tier.Name)
		})
	}
}

func TestResolveTier_EmptyTable(t *testing.T) {
	_, err := ResolveTier(nil, models.MerchantMetrics{})
	assert.ErrorIs(t, err, ErrNoTiers)
}

func TestResolveTier_BetterMetricsNeverWorsenTier(t *testing.T) {
	low := models.MerchantMetrics{
		PaidVolume30d:  dec("600000"),
		PaidCount30d:   60,
		AccountAgeDays: 40,
	}
	high := models.MerchantMetrics{
		PaidVolume30d:  dec("6000000"),
		PaidCount30d:   600,
		AccountAgeDays: 400,
	}

	lowTier, err := ResolveTier(ladder(), low)
	require.NoError(t, err)
	highTier, err := ResolveTier(ladder(), high)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, highTier.Rank, lowTier.Rank)
}

func TestScheduleFor(t *testing.T) {
	tier := &models.Tier{
		FeePercent: dec("2.5"),
		FeeMinimum: dec("50"),
		FeeMaximum: dec("2000"),
	}
	sched := ScheduleFor(tier)
	assert.Nil(t, sched.Fixed)
	assert.Equal(t, "2.5", sched.Percent.String())

	tier.FeeFixed = decimal.NewNullDecimal(dec("100"))
	sched = ScheduleFor(tier)
	require.NotNil(t, sched.Fixed)
	assert.Equal(t, "100", sched.Fixed.String())
}
