package repositories

import (
	"context"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Promotions() PromotionRepository
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Reviews() ReviewRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StockLine names a product and the quantity to move in or out of stock.
type StockLine struct {
	ProductID string
	Quantity  int
}

// ProductRepository persists catalog entries and owns the stock/sold counters.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)

	// DecrementStock subtracts stock and adds sold for every line. The whole
	// batch fails with a StockError when any line exceeds available stock;
	// inside a unit of work no partial decrement is committed.
	DecrementStock(ctx context.Context, lines []StockLine) error
	// RestoreStock reverses a prior decrement: stock grows, sold shrinks
	// (floored at zero).
	RestoreStock(ctx context.Context, lines []StockLine) error
	// UpdateRatingSummary overwrites the review rollup counters.
	UpdateRatingSummary(ctx context.Context, productID string, average float64, count int) error
}

// PromotionRepository maintains promotion definitions.
type PromotionRepository interface {
	Insert(ctx context.Context, promotion domain.Promotion) error
	Update(ctx context.Context, promotion domain.Promotion) error
	// Delete soft-deletes the promotion so existing product references stay resolvable.
	Delete(ctx context.Context, promotionID string, deletedAt time.Time) error
	FindByID(ctx context.Context, promotionID string) (domain.Promotion, error)
	List(ctx context.Context, filter PromotionListFilter) (domain.CursorPage[domain.Promotion], error)
}

// CartRepository owns the single cart document per user.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (domain.Cart, error)
	Upsert(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	// RemoveLines deletes the named product lines, ignoring products not present.
	RemoveLines(ctx context.Context, userID string, productIDs []string) error
	Clear(ctx context.Context, userID string) error
}

// OrderRepository persists order aggregates and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// PaymentRepository stores the payment record owned by each order.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	Delete(ctx context.Context, paymentID string) error
	FindByID(ctx context.Context, paymentID string) (domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
}

// ReviewRepository stores product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByUserAndProduct(ctx context.Context, userID string, productID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type ProductListFilter struct {
	Category   *string
	Brand      *string
	Search     string
	OnlyActive bool
	Pagination domain.Pagination
}

type PromotionListFilter struct {
	OnlyActive     bool
	IncludeDeleted bool
	Pagination     domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
