package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	pfirestore "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/firestore"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const promotionsCollection = "promotions"

type promotionDocument struct {
	Name         string    `firestore:"name"`
	DiscountRate float64   `firestore:"discountRate"`
	StartDate    time.Time `firestore:"startDate"`
	EndDate      time.Time `firestore:"endDate"`
	IsActive     bool      `firestore:"isActive"`
	IsDeleted    bool      `firestore:"isDeleted"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// PromotionRepository maintains promotion definitions within Firestore.
type PromotionRepository struct {
	base     *pfirestore.BaseRepository[promotionDocument]
	provider *pfirestore.Provider
}

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[promotionDocument](provider, promotionsCollection, nil, nil)
	return &PromotionRepository{base: base, provider: provider}, nil
}

// Insert creates the promotion document, failing on duplicate ids.
func (r *PromotionRepository) Insert(ctx context.Context, promotion domain.Promotion) error {
	if r == nil || r.base == nil {
		return errors.New("promotion repository not initialised")
	}
	id := strings.TrimSpace(promotion.ID)
	if id == "" {
		return errors.New("promotion repository: promotion id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, encodePromotion(promotion, time.Now())); err != nil {
		return pfirestore.WrapError("promotions.insert", err)
	}
	return nil
}

// Update overwrites the promotion document.
func (r *PromotionRepository) Update(ctx context.Context, promotion domain.Promotion) error {
	if r == nil || r.base == nil {
		return errors.New("promotion repository not initialised")
	}
	id := strings.TrimSpace(promotion.ID)
	if id == "" {
		return errors.New("promotion repository: promotion id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, encodePromotion(promotion, time.Now())); err != nil {
		return pfirestore.WrapError("promotions.update", err)
	}
	return nil
}

// Delete soft-deletes the promotion so product references stay resolvable.
func (r *PromotionRepository) Delete(ctx context.Context, promotionID string, deletedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("promotion repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(promotionID))
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "isActive", Value: false},
		{Path: "updatedAt", Value: deletedAt.UTC()},
	}
	if err := updateDoc(ctx, ref, updates); err != nil {
		return pfirestore.WrapError("promotions.delete", err)
	}
	return nil
}

// FindByID loads a single promotion.
func (r *PromotionRepository) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	if r == nil || r.base == nil {
		return domain.Promotion{}, errors.New("promotion repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(promotionID))
	if err != nil {
		return domain.Promotion{}, err
	}
	snapshot, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Promotion{}, pfirestore.WrapError("promotions.get", err)
	}
	var doc promotionDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Promotion{}, fmt.Errorf("firestore promotions decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodePromotion(snapshot.Ref.ID, doc), nil
}

// List returns a page of promotions ordered by creation time, newest first.
func (r *PromotionRepository) List(ctx context.Context, filter repositories.PromotionListFilter) (domain.CursorPage[domain.Promotion], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Promotion]{}, errors.New("promotion repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	cursor, err := decodePageCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Promotion]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if !filter.IncludeDeleted {
			q = q.Where("isDeleted", "==", false)
		}
		if filter.OnlyActive {
			q = q.Where("isActive", "==", true)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Promotion]{}, err
	}

	page := domain.CursorPage[domain.Promotion]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			page.NextPageToken = encodePageCursor(pageCursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, decodePromotion(doc.ID, doc.Data))
	}
	return page, nil
}

func encodePromotion(promotion domain.Promotion, now time.Time) promotionDocument {
	return promotionDocument{
		Name:         strings.TrimSpace(promotion.Name),
		DiscountRate: promotion.DiscountRate,
		StartDate:    promotion.StartDate.UTC(),
		EndDate:      promotion.EndDate.UTC(),
		IsActive:     promotion.IsActive,
		IsDeleted:    promotion.IsDeleted,
		CreatedAt:    normalizeTime(promotion.CreatedAt, now),
		UpdatedAt:    normalizeTime(promotion.UpdatedAt, now),
	}
}

func decodePromotion(id string, doc promotionDocument) domain.Promotion {
	return domain.Promotion{
		ID:           id,
		Name:         doc.Name,
		DiscountRate: doc.DiscountRate,
		StartDate:    doc.StartDate,
		EndDate:      doc.EndDate,
		IsActive:     doc.IsActive,
		IsDeleted:    doc.IsDeleted,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.PromotionRepository = (*PromotionRepository)(nil)
