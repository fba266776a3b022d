package services

import (
	"context"
	"net/url"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/payments"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	Promotion          = domain.Promotion
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	Payment            = domain.Payment
	PaymentMethod      = domain.PaymentMethod
	PaymentStatus      = domain.PaymentStatus
	Review             = domain.Review
	SystemHealthReport = domain.SystemHealthReport
)

// Filters shared with the repository layer.
type (
	ProductListFilter   = repositories.ProductListFilter
	PromotionListFilter = repositories.PromotionListFilter
	OrderListFilter     = repositories.OrderListFilter
)

// CatalogService manages the product catalogue for storefront and admin usage.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// PromotionService exposes promotion lifecycle operations.
type PromotionService interface {
	ListPromotions(ctx context.Context, filter PromotionListFilter) (domain.CursorPage[Promotion], error)
	GetPromotion(ctx context.Context, promotionID string) (Promotion, error)
	CreatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	UpdatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	DeletePromotion(ctx context.Context, promotionID string) error
}

// CartService manages the single mutable cart each user owns.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error)
	RemoveItems(ctx context.Context, userID string, productIDs []string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderService encapsulates order creation, lifecycle transitions, and deletion.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Delete(ctx context.Context, cmd DeleteOrderCommand) error
}

// PaymentService drives the gateway redirect flow and payment reconciliation.
type PaymentService interface {
	CreatePaymentURL(ctx context.Context, cmd PaymentURLCommand) (string, error)
	ProcessIPN(ctx context.Context, query url.Values) payments.IPNResponse
	ProcessReturn(ctx context.Context, query url.Values) (string, error)
	GetByOrder(ctx context.Context, orderID string) (Payment, error)
	Reconcile(ctx context.Context, orderID string) (Payment, error)
	OverrideStatus(ctx context.Context, cmd PaymentStatusOverrideCommand) (Payment, error)
}

// ReviewService coordinates review creation and retrieval with purchase gating.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error)
}

// MediaService issues signed upload URLs for catalog imagery.
type MediaService interface {
	SignProductImageUpload(ctx context.Context, cmd SignProductImageCommand) (UploadTicket, error)
}

// SystemService aggregates utility endpoints such as dependency health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

type UpsertProductCommand struct {
	Product Product
	ActorID string
}

type UpsertPromotionCommand struct {
	Promotion Promotion
	ActorID   string
}

type UpsertCartLineCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// OrderLineInput names one product and quantity in an order request.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderCommand struct {
	UserID          string
	Items           []OrderLineInput
	ShippingAddress string
	ShippingFee     float64
	Discount        float64
	PaymentMethod   PaymentMethod
	ClearCart       bool
}

type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
	Reason       string
}

type DeleteOrderCommand struct {
	OrderID string
	ActorID string
}

type PaymentURLCommand struct {
	OrderID   string
	ClientIP  string
	OrderInfo string
	CreatedAt time.Time
}

type PaymentStatusOverrideCommand struct {
	PaymentID string
	Status    PaymentStatus
	ActorID   string
	Reason    string
}

type CreateReviewCommand struct {
	UserID    string
	ProductID string
	Rating    int
	Content   string
}

type SignProductImageCommand struct {
	ProductID   string
	FileName    string
	ContentType string
	ContentMD5  string
	ActorID     string
}

// UploadTicket carries everything the client needs to PUT an object directly
// to the bucket.
type UploadTicket struct {
	URL        string
	Method     string
	Headers    map[string]string
	Bucket     string
	ObjectPath string
	ExpiresAt  time.Time
}
