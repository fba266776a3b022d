package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const reviewIDPrefix = "rev_"

// Pages scanned when checking whether the user actually received the product.
const reviewEligibilityPageSize = 100

var (
	// ErrReviewInvalidInput signals the caller provided invalid review data.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotEligible indicates the user has no delivered order containing the product.
	ErrReviewNotEligible = errors.New("review: not eligible")
	// ErrReviewDuplicate indicates the user already reviewed the product.
	ErrReviewDuplicate = errors.New("review: duplicate")
	// ErrReviewNotFound indicates the review could not be located.
	ErrReviewNotFound = errors.New("review: not found")
)

// ReviewServiceDeps bundles collaborators required to construct the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Products    repositories.ProductRepository
	Orders      repositories.OrderRepository
	UnitOfWork  repositories.UnitOfWork
	Sanitizer   *bluemonday.Policy
	Clock       func() time.Time
	IDGenerator func() string
}

type reviewService struct {
	reviews    repositories.ReviewRepository
	products   repositories.ProductRepository
	orders     repositories.OrderRepository
	unitOfWork repositories.UnitOfWork
	sanitizer  *bluemonday.Policy
	clock      func() time.Time
	newID      func() string
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
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

	return &reviewService{
		reviews:    deps.Reviews,
		products:   deps.Products,
		orders:     deps.Orders,
		unitOfWork: unit,
		sanitizer:  sanitizer,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" {
		return Review{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	if productID == "" {
		return Review{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrReviewInvalidInput, cmd.Rating)
	}

	if _, err := s.reviews.FindByUserAndProduct(ctx, userID, productID); err == nil {
		return Review{}, fmt.Errorf("%w: user %s already reviewed product %s", ErrReviewDuplicate, userID, productID)
	} else if !isNotFound(err) {
		return Review{}, err
	}

	eligible, err := s.hasDeliveredPurchase(ctx, userID, productID)
	if err != nil {
		return Review{}, err
	}
	if !eligible {
		return Review{}, fmt.Errorf("%w: no delivered order for product %s", ErrReviewNotEligible, productID)
	}

	now := s.clock()
	review := Review{
		ID:        reviewIDPrefix + s.newID(),
		ProductID: productID,
		UserID:    userID,
		Rating:    cmd.Rating,
		Content:   strings.TrimSpace(s.sanitizer.Sanitize(cmd.Content)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		product, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: product %s", ErrReviewInvalidInput, productID)
			}
			return err
		}

		if _, err := s.reviews.Insert(txCtx, review); err != nil {
			return err
		}

		count := product.ReviewCount + 1
		average := domain.Round2((product.AverageRating*float64(product.ReviewCount) + float64(cmd.Rating)) / float64(count))
		return s.products.UpdateRatingSummary(txCtx, productID, average, count)
	})
	if err != nil {
		return Review{}, err
	}
	return review, nil
}

func (s *reviewService) ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	return s.reviews.ListByProduct(ctx, productID, pager)
}

// hasDeliveredPurchase scans the user's delivered orders for the product.
func (s *reviewService) hasDeliveredPurchase(ctx context.Context, userID string, productID string) (bool, error) {
	filter := OrderListFilter{
		UserID: userID,
		Status: []string{string(domain.OrderStatusDelivered)},
		Pagination: domain.Pagination{
			PageSize: reviewEligibilityPageSize,
		},
	}
	for {
		page, err := s.orders.List(ctx, filter)
		if err != nil {
			return false, err
		}
		for _, order := range page.Items {
			for _, item := range order.Items {
				if item.ProductID == productID {
					return true, nil
				}
			}
		}
		if page.NextPageToken == "" {
			return false, nil
		}
		filter.Pagination.PageToken = page.NextPageToken
	}
}

func (s *reviewService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}
