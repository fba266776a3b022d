package domain

import (
	"math"
	"time"
)

// Round2 rounds a monetary amount to two decimal places. All price math in
// the order pipeline goes through this helper so stored totals stay stable.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// PromotionAppliesAt reports whether the promotion discount is in effect at
// the given instant. Both window bounds are inclusive.
func PromotionAppliesAt(p *Promotion, at time.Time) bool {
	if p == nil || !p.IsActive || p.IsDeleted {
		return false
	}
	if p.DiscountRate <= 0 || p.DiscountRate > 100 {
		return false
	}
	if !p.StartDate.IsZero() && at.Before(p.StartDate) {
		return false
	}
	if !p.EndDate.IsZero() && at.After(p.EndDate) {
		return false
	}
	return true
}

// EffectiveUnitPrice resolves the price a buyer pays for one unit of the
// product at the given instant. Outside the promotion window the list price
// is returned unchanged.
func EffectiveUnitPrice(listPrice float64, p *Promotion, at time.Time) float64 {
	if !PromotionAppliesAt(p, at) {
		return listPrice
	}
	return Round2(listPrice * (1 - p.DiscountRate/100))
}
