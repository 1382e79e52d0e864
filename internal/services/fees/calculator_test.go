package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateFee(t *testing.T) {
	standard := Schedule{
		Percent: dec("2.5"),
		Minimum: dec("50"),
		Maximum: dec("2000"),
	}

	tests := []struct {
		name       string
		amount     string
		sched      Schedule
		multiplier string
		want       string
	}{
		{
			name:       "percentage within band",
			amount:     "10000",
			sched:      standard,
			multiplier: "1",
			want:       "250.00",
		},
		{
			name:       "clamped to maximum",
			amount:     "500000",
			sched:      standard,
			multiplier: "1",
			want:       "2000.00",
		},
		{
			name:       "clamped to minimum",
			amount:     "100",
			sched:      standard,
			multiplier: "1",
			want:       "50.00",
		},
		{
			name:       "category multiplier applies after clamping",
			amount:     "10000",
			sched:      standard,
			multiplier: "0.8",
			want:       "200.00",
		},
		{
			name:       "zero multiplier treated as one",
			amount:     "10000",
			sched:      standard,
			multiplier: "0",
			want:       "250.00",
		},
		{
			name:   "fixed fee bypasses percentage and multiplier",
			amount: "10000",
			sched: Schedule{
				Percent: dec("2.5"),
				Minimum: dec("50"),
				Maximum: dec("2000"),
				Fixed:   ptr(dec("100")),
			},
			multiplier: "0.8",
			want:       "100.00",
		},
		{
			name:       "rounds half up to two places",
			amount:     "10010",
			sched:      Schedule{Percent: dec("2.499"), Minimum: dec("0"), Maximum: dec("100000")},
			multiplier: "1",
			want:       "250.15",
		},
		{
			name:       "zero maximum means unbounded",
			amount:     "1000000",
			sched:      Schedule{Percent: dec("2.5"), Minimum: dec("50"), Maximum: dec("0")},
			multiplier: "1",
			want:       "25000.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFee(dec(tt.amount), tt.sched, dec(tt.multiplier))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestCalculateFee_StaysWithinBand(t *testing.T) {
	sched := Schedule{
		Percent: dec("3.0"),
		Minimum: dec("50"),
		Maximum: dec("2500"),
	}

	for _, amount := range []string{"1", "100", "1666.66", "83333.33", "83334", "5000000"} {
		fee := CalculateFee(dec(amount), sched, decimal.NewFromInt(1))
		assert.True(t, fee.GreaterThanOrEqual(sched.Minimum),
			"fee %s below minimum for amount %s", fee, amount)
		assert.True(t, fee.LessThanOrEqual(sched.Maximum),
			"fee %s above maximum for amount %s", fee, amount)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
