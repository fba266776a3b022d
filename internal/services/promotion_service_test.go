package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
)

func newPromotionServiceForTest(t *testing.T, promotions *memPromotions) (PromotionService, *memPromotions) {
	t.Helper()
	if promotions == nil {
		promotions = newMemPromotions()
	}
	service, err := NewPromotionService(PromotionServiceDeps{
		Promotions:  promotions,
		Clock:       fixedClock(testNow),
		IDGenerator: sequenceIDs("id"),
	})
	if err != nil {
		t.Fatalf("NewPromotionService returned error: %v", err)
	}
	return service, promotions
}

func TestCreatePromotion(t *testing.T) {
	service, repo := newPromotionServiceForTest(t, nil)

	created, err := service.CreatePromotion(context.Background(), UpsertPromotionCommand{
		Promotion: Promotion{
			Name:         "Summer Sale",
			DiscountRate: 20,
			StartDate:    testNow,
			EndDate:      testNow.Add(7 * 24 * time.Hour),
			IsActive:     true,
		},
	})
	if err != nil {
		t.Fatalf("CreatePromotion returned error: %v", err)
	}
	if created.ID != "promo_id0001" {
		t.Fatalf("unexpected promotion id %q", created.ID)
	}
	if created.IsDeleted {
		t.Fatal("expected new promotion not deleted")
	}
	if stored := repo.get(created.ID); stored.Name != "Summer Sale" {
		t.Fatalf("expected promotion persisted, got %+v", stored)
	}
}

func TestCreatePromotionValidation(t *testing.T) {
	service, _ := newPromotionServiceForTest(t, nil)

	cases := []Promotion{
		{Name: "", DiscountRate: 10, StartDate: testNow, EndDate: testNow.Add(time.Hour)},
		{Name: "Sale", DiscountRate: 0, StartDate: testNow, EndDate: testNow.Add(time.Hour)},
		{Name: "Sale", DiscountRate: 101, StartDate: testNow, EndDate: testNow.Add(time.Hour)},
		{Name: "Sale", DiscountRate: 10},
		{Name: "Sale", DiscountRate: 10, StartDate: testNow.Add(time.Hour), EndDate: testNow},
	}
	for i, promotion := range cases {
		if _, err := service.CreatePromotion(context.Background(), UpsertPromotionCommand{Promotion: promotion}); !errors.Is(err, ErrPromotionInvalidInput) {
			t.Fatalf("case %d: expected ErrPromotionInvalidInput, got %v", i, err)
		}
	}
}

func TestUpdatePromotionPreservesLifecycleFields(t *testing.T) {
	createdAt := testNow.Add(-30 * 24 * time.Hour)
	service, repo := newPromotionServiceForTest(t, newMemPromotions(domain.Promotion{
		ID:           "promo_1",
		Name:         "Old Name",
		DiscountRate: 10,
		StartDate:    testNow,
		EndDate:      testNow.Add(time.Hour),
		CreatedAt:    createdAt,
	}))

	updated, err := service.UpdatePromotion(context.Background(), UpsertPromotionCommand{
		Promotion: Promotion{
			ID:           "promo_1",
			Name:         "New Name",
			DiscountRate: 25,
			StartDate:    testNow,
			EndDate:      testNow.Add(48 * time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("UpdatePromotion returned error: %v", err)
	}
	if !updated.CreatedAt.Equal(createdAt) {
		t.Fatal("expected creation timestamp preserved")
	}
	if updated.Name != "New Name" || updated.DiscountRate != 25 {
		t.Fatal("expected mutable fields applied")
	}
	if stored := repo.get("promo_1"); stored.Name != "New Name" {
		t.Fatalf("expected update persisted, got %+v", stored)
	}
}

func TestDeletePromotionIsSoft(t *testing.T) {
	service, repo := newPromotionServiceForTest(t, newMemPromotions(domain.Promotion{
		ID:           "promo_1",
		Name:         "Sale",
		DiscountRate: 10,
		StartDate:    testNow,
		EndDate:      testNow.Add(time.Hour),
		IsActive:     true,
	}))

	if err := service.DeletePromotion(context.Background(), "promo_1"); err != nil {
		t.Fatalf("DeletePromotion returned error: %v", err)
	}
	stored := repo.get("promo_1")
	if !stored.IsDeleted || stored.IsActive {
		t.Fatalf("expected soft delete, got %+v", stored)
	}
}

func TestGetPromotionUnknownID(t *testing.T) {
	service, _ := newPromotionServiceForTest(t, nil)

	_, err := service.GetPromotion(context.Background(), "promo_missing")
	if !errors.Is(err, ErrPromotionNotFound) {
		t.Fatalf("expected ErrPromotionNotFound, got %v", err)
	}
}
