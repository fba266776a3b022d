package domain

import (
	"testing"
	"time"
)

func TestPromotionAppliesAtWindowBoundaries(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)
	promo := &Promotion{
		ID:           "promo_spring",
		Name:         "Spring Sale",
		DiscountRate: 10,
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "exact start instant", at: start, want: true},
		{name: "exact end instant", at: end, want: true},
		{name: "just before start", at: start.Add(-time.Nanosecond), want: false},
		{name: "just after end", at: end.Add(time.Nanosecond), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PromotionAppliesAt(promo, tc.at); got != tc.want {
				t.Fatalf("PromotionAppliesAt(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestPromotionAppliesAtRejectsUnusable(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	window := Promotion{
		DiscountRate: 10,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
		IsActive:     true,
	}

	inactive := window
	inactive.IsActive = false
	deleted := window
	deleted.IsDeleted = true
	zeroRate := window
	zeroRate.DiscountRate = 0
	overRate := window
	overRate.DiscountRate = 101

	cases := []struct {
		name  string
		promo *Promotion
	}{
		{name: "nil promotion", promo: nil},
		{name: "inactive", promo: &inactive},
		{name: "deleted", promo: &deleted},
		{name: "zero discount rate", promo: &zeroRate},
		{name: "rate above hundred", promo: &overRate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if PromotionAppliesAt(tc.promo, now) {
				t.Fatal("expected promotion not to apply")
			}
		})
	}
}

func TestOrderTotalWithMixedPromotionLines(t *testing.T) {
	now := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	promo := &Promotion{
		ID:           "promo_10",
		DiscountRate: 10,
		StartDate:    now.Add(-24 * time.Hour),
		EndDate:      now.Add(24 * time.Hour),
		IsActive:     true,
	}

	// Three units at 10.00 without a promotion, one unit at 20.00 under a
	// 10% promotion, 5.00 shipping, 2.00 order-level discount.
	plainUnit := EffectiveUnitPrice(10, nil, now)
	if plainUnit != 10 {
		t.Fatalf("EffectiveUnitPrice without promotion = %v, want 10", plainUnit)
	}
	discountedUnit := EffectiveUnitPrice(20, promo, now)
	if discountedUnit != 18 {
		t.Fatalf("EffectiveUnitPrice with 10%% promotion = %v, want 18", discountedUnit)
	}

	itemsTotal := Round2(plainUnit*3 + discountedUnit*1)
	if itemsTotal != 48 {
		t.Fatalf("items total = %v, want 48", itemsTotal)
	}

	total := Round2(itemsTotal + 5 - 2)
	if total != 51 {
		t.Fatalf("order total = %v, want 51", total)
	}
}
