package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const promotionIDPrefix = "promo_"

var (
	// ErrPromotionInvalidInput signals the caller provided invalid promotion data.
	ErrPromotionInvalidInput = errors.New("promotion: invalid input")
	// ErrPromotionNotFound indicates the promotion could not be located.
	ErrPromotionNotFound = errors.New("promotion: not found")
)

// PromotionServiceDeps bundles collaborators required to construct the promotion service.
type PromotionServiceDeps struct {
	Promotions  repositories.PromotionRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type promotionService struct {
	promotions repositories.PromotionRepository
	clock      func() time.Time
	newID      func() string
}

// NewPromotionService wires dependencies into a concrete PromotionService implementation.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion service: promotion repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &promotionService{
		promotions: deps.Promotions,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *promotionService) ListPromotions(ctx context.Context, filter PromotionListFilter) (domain.CursorPage[Promotion], error) {
	page, err := s.promotions.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Promotion]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *promotionService) GetPromotion(ctx context.Context, promotionID string) (Promotion, error) {
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	promotion, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		return Promotion{}, s.mapRepositoryError(err)
	}
	return promotion, nil
}

func (s *promotionService) CreatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	promotion := cmd.Promotion
	if err := validatePromotion(&promotion); err != nil {
		return Promotion{}, err
	}

	now := s.clock()
	promotion.ID = promotionIDPrefix + s.newID()
	promotion.IsDeleted = false
	promotion.CreatedAt = now
	promotion.UpdatedAt = now

	if err := s.promotions.Insert(ctx, promotion); err != nil {
		return Promotion{}, s.mapRepositoryError(err)
	}
	return promotion, nil
}

func (s *promotionService) UpdatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	promotion := cmd.Promotion
	promotionID := strings.TrimSpace(promotion.ID)
	if promotionID == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	if err := validatePromotion(&promotion); err != nil {
		return Promotion{}, err
	}

	existing, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		return Promotion{}, s.mapRepositoryError(err)
	}

	promotion.ID = existing.ID
	promotion.IsDeleted = existing.IsDeleted
	promotion.CreatedAt = existing.CreatedAt
	promotion.UpdatedAt = s.clock()

	if err := s.promotions.Update(ctx, promotion); err != nil {
		return Promotion{}, s.mapRepositoryError(err)
	}
	return promotion, nil
}

// DeletePromotion soft-deletes so products that still reference the
// promotion resolve it as inactive instead of dangling.
func (s *promotionService) DeletePromotion(ctx context.Context, promotionID string) error {
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return fmt.Errorf("%w: promotion id is required", ErrPromotionInvalidInput)
	}
	if err := s.promotions.Delete(ctx, promotionID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func validatePromotion(promotion *Promotion) error {
	promotion.Name = strings.TrimSpace(promotion.Name)
	if promotion.Name == "" {
		return fmt.Errorf("%w: name is required", ErrPromotionInvalidInput)
	}
	if promotion.DiscountRate <= 0 || promotion.DiscountRate > 100 {
		return fmt.Errorf("%w: discount rate must be in (0, 100], got %v", ErrPromotionInvalidInput, promotion.DiscountRate)
	}
	if promotion.StartDate.IsZero() || promotion.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrPromotionInvalidInput)
	}
	if !promotion.EndDate.After(promotion.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrPromotionInvalidInput)
	}
	return nil
}

func (s *promotionService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPromotionNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("promotion: repository unavailable: %w", err)
		}
	}
	return err
}
