// Package fees computes transaction fees from tiered schedules. The
// calculator is pure: same inputs, same fee, no side effects.
package fees

import "github.com/shopspring/decimal"

// Schedule is a resolved fee structure for one tier.
type Schedule struct {
	Percent decimal.Decimal // e.g. 2.5 means 2.5%
	Minimum decimal.Decimal
	Maximum decimal.Decimal
	Fixed   *decimal.Decimal // flat fee, bypasses everything else
}

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// CalculateFee computes the platform fee for an amount.
//
// A fixed fee is returned as configured: it is a flat platform charge,
// so the category multiplier does not apply. Otherwise the percentage
// fee is clamped to [minimum, maximum], scaled by the multiplier and
// rounded half-up to 2 decimal places.
func CalculateFee(amount decimal.Decimal, sched Schedule, multiplier decimal.Decimal) decimal.Decimal {
	if sched.Fixed != nil {
		return sched.Fixed.Round(2)
	}

	if multiplier.IsZero() {
		multiplier = one
	}

	fee := amount.Mul(sched.Percent).Div(hundred)
	if fee.LessThan(sched.Minimum) {
		fee = sched.Minimum
	}
	if sched.Maximum.IsPositive() && fee.GreaterThan(sched.Maximum) {
		fee = sched.Maximum
	}

	// decimal.Round rounds half away from zero, which for positive
	// amounts is exactly round-half-up.
	return fee.Mul(multiplier).Round(2)
}
