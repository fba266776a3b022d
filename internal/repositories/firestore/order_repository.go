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

const ordersCollection = "orders"

type orderDocument struct {
	Number          string              `firestore:"number,omitempty"`
	UserID          string              `firestore:"userId"`
	Items           []orderItemDocument `firestore:"items"`
	TotalQuantity   int                 `firestore:"totalQuantity"`
	TotalPrice      float64             `firestore:"totalPrice"`
	Discount        float64             `firestore:"discount"`
	ShippingFee     float64             `firestore:"shippingFee"`
	ShippingAddress string              `firestore:"shippingAddress,omitempty"`
	Status          string              `firestore:"status"`
	PaymentID       string              `firestore:"paymentId,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID   string  `firestore:"productId"`
	ProductName string  `firestore:"productName,omitempty"`
	Quantity    int     `firestore:"quantity"`
	Price       float64 `firestore:"price"`
	SubTotal    float64 `firestore:"subTotal"`
}

// OrderRepository persists order aggregates within Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document, failing on duplicate ids.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, encodeOrder(order, time.Now())); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, encodeOrder(order, time.Now())); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, ref); err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

// FindByID loads a single order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	snapshot, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("firestore orders decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodeOrder(snapshot.Ref.ID, doc), nil
}

// List returns a page of orders, newest first, filtered by user/status/date.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	cursor, err := decodePageCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", filter.Status[0])
		} else if len(filter.Status) > 1 {
			q = q.Where("status", "in", filter.Status)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			page.NextPageToken = encodePageCursor(pageCursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

func encodeOrder(order domain.Order, now time.Time) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			SubTotal:    item.SubTotal,
		})
	}
	return orderDocument{
		Number:          strings.TrimSpace(order.Number),
		UserID:          strings.TrimSpace(order.UserID),
		Items:           items,
		TotalQuantity:   order.TotalQuantity,
		TotalPrice:      order.TotalPrice,
		Discount:        order.Discount,
		ShippingFee:     order.ShippingFee,
		ShippingAddress: strings.TrimSpace(order.ShippingAddress),
		Status:          string(order.Status),
		PaymentID:       strings.TrimSpace(order.PaymentID),
		CreatedAt:       normalizeTime(order.CreatedAt, now),
		UpdatedAt:       normalizeTime(order.UpdatedAt, now),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			SubTotal:    item.SubTotal,
		})
	}
	return domain.Order{
		ID:              id,
		Number:          doc.Number,
		UserID:          doc.UserID,
		Items:           items,
		TotalQuantity:   doc.TotalQuantity,
		TotalPrice:      doc.TotalPrice,
		Discount:        doc.Discount,
		ShippingFee:     doc.ShippingFee,
		ShippingAddress: doc.ShippingAddress,
		Status:          domain.OrderStatus(doc.Status),
		PaymentID:       doc.PaymentID,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
