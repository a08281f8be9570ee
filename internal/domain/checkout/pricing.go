package checkout

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Pricing holds the subscription plan terms applied to every checkout.
type Pricing struct {
	// MonthlyPriceCents is the plan price in the currency's minor unit.
	MonthlyPriceCents int64
	Currency          string
	// TrialDays is the free-trial length granted to first-time subscribers.
	TrialDays int
}

// MonthlyPrice returns the plan price in major units.
func (p Pricing) MonthlyPrice() decimal.Decimal {
	return decimal.NewFromInt(p.MonthlyPriceCents).Div(hundred)
}

// FirstCharge returns the amount of the first invoice after applying a
// percentage discount, rounded to two decimal places and floored at zero.
func (p Pricing) FirstCharge(discountPercent int) decimal.Decimal {
	price := p.MonthlyPrice()
	if discountPercent <= 0 {
		return price.Round(2)
	}
	remaining := hundred.Sub(decimal.NewFromInt(int64(discountPercent)))
	amount := price.Mul(remaining).Div(hundred)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}
