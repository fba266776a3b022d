package domain

import "time"

// OrderStatus captures the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly created order awaiting confirmation.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed marks an order acknowledged by staff or a successful payment.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusProcessing marks an order being picked and packed.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipping marks an order handed to the carrier.
	OrderStatusShipping OrderStatus = "SHIPPING"
	// OrderStatusDelivered marks an order received by the buyer.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusReturned marks an order sent back by the buyer.
	OrderStatusReturned OrderStatus = "RETURNED"
	// OrderStatusCancelled marks an order cancelled before fulfilment completed.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded marks a returned order whose payment has been refunded.
	OrderStatusRefunded OrderStatus = "REFUNDED"
	// OrderStatusFailed marks an order whose online payment was rejected.
	OrderStatusFailed OrderStatus = "FAILED"
)

// PaymentMethod enumerates how an order is paid.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash collected on delivery.
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodVNPay is the domestic online gateway redirect flow.
	PaymentMethodVNPay PaymentMethod = "VNPAY"
	// PaymentMethodCard is the international card checkout flow.
	PaymentMethodCard PaymentMethod = "CARD"
)

// PaymentStatus captures the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Product is the catalog entry including the inventory counters mutated by
// the order lifecycle.
type Product struct {
	ID             string
	Name           string
	Brand          string
	Description    string
	Category       string
	Images         []string
	Price          float64
	StockQuantity  int
	Sold           int
	PromotionID    string
	AverageRating  float64
	ReviewCount    int
	SearchKeywords []string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Promotion is a time-bounded percentage discount attached to products.
type Promotion struct {
	ID           string
	Name         string
	DiscountRate float64
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartLine is a single product/quantity pair inside a cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Cart holds the pending selection for one user. One cart per user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a line frozen at checkout time. Price and SubTotal never
// change after creation even if the product price does.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       float64
	SubTotal    float64
}

// Order is the order aggregate. Items and totals are immutable after
// creation; only Status and PaymentID mutate.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Items           []OrderItem
	TotalQuantity   int
	TotalPrice      float64
	Discount        float64
	ShippingFee     float64
	ShippingAddress string
	Status          OrderStatus
	PaymentID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payment is owned by exactly one order. Amount equals the order total at
// creation time.
type Payment struct {
	ID            string
	OrderID       string
	Method        PaymentMethod
	Status        PaymentStatus
	Amount        float64
	TransactionID string
	PaymentDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Review is buyer feedback attached to a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pagination carries the page inputs accepted by list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the next page token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery expresses an inclusive bound pair for filterable fields.
type RangeQuery[T any] struct {
	From *T
	To   *T
}

// HealthStatus grades the outcome of a dependency probe.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck records the result of a single dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for readiness reporting.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
