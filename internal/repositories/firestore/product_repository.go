package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	pfirestore "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/firestore"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/pagination"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name           string    `firestore:"name"`
	Brand          string    `firestore:"brand,omitempty"`
	Description    string    `firestore:"description,omitempty"`
	Category       string    `firestore:"category,omitempty"`
	Images         []string  `firestore:"images,omitempty"`
	Price          float64   `firestore:"price"`
	StockQuantity  int       `firestore:"stockQuantity"`
	Sold           int       `firestore:"sold"`
	PromotionID    string    `firestore:"promotionId,omitempty"`
	AverageRating  float64   `firestore:"averageRating"`
	ReviewCount    int       `firestore:"reviewCount"`
	SearchKeywords []string  `firestore:"searchKeywords,omitempty"`
	IsActive       bool      `firestore:"isActive"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// ProductRepository persists catalog entries and owns the stock/sold counters.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{base: base, provider: provider}, nil
}

// Insert creates the product document, failing on duplicate ids.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	doc := encodeProduct(product, now)
	if err := createDoc(ctx, ref, doc); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := encodeProduct(product, time.Now())
	if err := setDoc(ctx, ref, doc); err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	return nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(productID))
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, ref); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	snapshot, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}
	var doc productDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("firestore products decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodeProduct(snapshot.Ref.ID, doc), nil
}

// List returns a page of products ordered by creation time, newest first.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	cursor, err := decodePageCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OnlyActive {
			q = q.Where("isActive", "==", true)
		}
		if filter.Category != nil && strings.TrimSpace(*filter.Category) != "" {
			q = q.Where("category", "==", strings.TrimSpace(*filter.Category))
		}
		if filter.Brand != nil && strings.TrimSpace(*filter.Brand) != "" {
			q = q.Where("brand", "==", strings.TrimSpace(*filter.Brand))
		}
		if term := strings.TrimSpace(filter.Search); term != "" {
			q = q.Where("searchKeywords", "array-contains", term)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	page := domain.CursorPage[domain.Product]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			page.NextPageToken = encodePageCursor(pageCursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, decodeProduct(doc.ID, doc.Data))
	}
	return page, nil
}

// DecrementStock subtracts stock and adds sold for every line inside the
// active transaction. Reads happen up front so the conditional check and the
// writes are atomic; any shortfall aborts the whole batch.
func (r *ProductRepository) DecrementStock(ctx context.Context, lines []repositories.StockLine) error {
	return r.adjustStock(ctx, "products.decrement_stock", lines, false)
}

// RestoreStock reverses a prior decrement for every line.
func (r *ProductRepository) RestoreStock(ctx context.Context, lines []repositories.StockLine) error {
	return r.adjustStock(ctx, "products.restore_stock", lines, true)
}

func (r *ProductRepository) adjustStock(ctx context.Context, op string, lines []repositories.StockLine, restore bool) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if len(lines) == 0 {
		return nil
	}

	apply := func(ctx context.Context) error {
		type pending struct {
			ref  *firestore.DocumentRef
			line repositories.StockLine
			doc  productDocument
		}
		staged := make([]pending, 0, len(lines))

		// All reads before any write: required inside a Firestore transaction.
		for _, line := range lines {
			id := strings.TrimSpace(line.ProductID)
			if id == "" || line.Quantity <= 0 {
				return repositories.NewStockError(repositories.StockErrorUnknown, id, fmt.Sprintf("invalid stock line %q qty %d", id, line.Quantity), nil)
			}
			ref, err := r.base.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			snapshot, err := getDoc(ctx, ref)
			if status.Code(err) == codes.NotFound {
				return repositories.NewStockError(repositories.StockErrorProductNotFound, id, fmt.Sprintf("product %s has no stock record", id), err)
			}
			if err != nil {
				return pfirestore.WrapError(op, err)
			}
			var doc productDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", id, err)
			}
			if !restore && doc.StockQuantity < line.Quantity {
				return repositories.NewStockError(
					repositories.StockErrorInsufficient,
					id,
					fmt.Sprintf("product %s stock %d below requested %d", id, doc.StockQuantity, line.Quantity),
					nil,
				)
			}
			staged = append(staged, pending{ref: ref, line: line, doc: doc})
		}

		now := time.Now().UTC()
		for _, entry := range staged {
			stock := entry.doc.StockQuantity
			sold := entry.doc.Sold
			if restore {
				stock += entry.line.Quantity
				sold -= entry.line.Quantity
				if sold < 0 {
					sold = 0
				}
			} else {
				stock -= entry.line.Quantity
				sold += entry.line.Quantity
			}
			updates := []firestore.Update{
				{Path: "stockQuantity", Value: stock},
				{Path: "sold", Value: sold},
				{Path: "updatedAt", Value: now},
			}
			if err := updateDoc(ctx, entry.ref, updates); err != nil {
				return pfirestore.WrapError(op, err)
			}
		}
		return nil
	}

	// Outside a unit of work, open a transaction so the conditional check
	// and decrement stay atomic under concurrent orders.
	if txFrom(ctx) != nil {
		return apply(ctx)
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return apply(withTx(ctx, tx))
	})
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		return stockErr
	}
	return err
}

// UpdateRatingSummary overwrites the review rollup counters.
func (r *ProductRepository) UpdateRatingSummary(ctx context.Context, productID string, average float64, count int) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(productID))
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "averageRating", Value: average},
		{Path: "reviewCount", Value: count},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if err := updateDoc(ctx, ref, updates); err != nil {
		return pfirestore.WrapError("products.rating_summary", err)
	}
	return nil
}

func encodeProduct(product domain.Product, now time.Time) productDocument {
	keywords := append([]string(nil), product.SearchKeywords...)
	sort.Strings(keywords)
	return productDocument{
		Name:           strings.TrimSpace(product.Name),
		Brand:          strings.TrimSpace(product.Brand),
		Description:    strings.TrimSpace(product.Description),
		Category:       strings.TrimSpace(product.Category),
		Images:         append([]string(nil), product.Images...),
		Price:          product.Price,
		StockQuantity:  product.StockQuantity,
		Sold:           product.Sold,
		PromotionID:    strings.TrimSpace(product.PromotionID),
		AverageRating:  product.AverageRating,
		ReviewCount:    product.ReviewCount,
		SearchKeywords: keywords,
		IsActive:       product.IsActive,
		CreatedAt:      normalizeTime(product.CreatedAt, now),
		UpdatedAt:      normalizeTime(product.UpdatedAt, now),
	}
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:             id,
		Name:           doc.Name,
		Brand:          doc.Brand,
		Description:    doc.Description,
		Category:       doc.Category,
		Images:         append([]string(nil), doc.Images...),
		Price:          doc.Price,
		StockQuantity:  doc.StockQuantity,
		Sold:           doc.Sold,
		PromotionID:    doc.PromotionID,
		AverageRating:  doc.AverageRating,
		ReviewCount:    doc.ReviewCount,
		SearchKeywords: append([]string(nil), doc.SearchKeywords...),
		IsActive:       doc.IsActive,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// pageCursor is the opaque page token payload shared by the list queries in
// this package. Tokens ride the platform pagination codec so the API never
// leaks raw Firestore cursor values.
type pageCursor struct {
	CreatedAt time.Time
	ID        string
}

func encodePageCursor(cursor pageCursor) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodePageCursor(token string) (*pageCursor, error) {
	decoded, err := pagination.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if len(decoded.StartAfter) == 0 {
		return nil, nil
	}
	if len(decoded.StartAfter) != 2 {
		return nil, fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	rawTime, ok := decoded.StartAfter[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cursor timestamp", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	id, ok := decoded.StartAfter[1].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: unexpected cursor id", pagination.ErrInvalidPageToken)
	}
	return &pageCursor{CreatedAt: createdAt.UTC(), ID: id}, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
