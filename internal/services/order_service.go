package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix       = "ord_"
	paymentIDPrefix     = "pay_"
	transactionIDPrefix = "TXN-"

	orderNumberCounter = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition or deletion was attempted.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates duplicate writes or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInsufficientStock indicates a requested quantity exceeds available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderProductUnavailable indicates a referenced product is missing or inactive.
	ErrOrderProductUnavailable = errors.New("order: product unavailable")
)

// orderStateTransitions is the full lifecycle graph. Statuses absent from the
// map (CANCELLED, REFUNDED, FAILED) are terminal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipping, domain.OrderStatusCancelled},
	domain.OrderStatusShipping:   {domain.OrderStatusDelivered, domain.OrderStatusReturned},
	domain.OrderStatusDelivered:  {domain.OrderStatusReturned},
	domain.OrderStatusReturned:   {domain.OrderStatusRefunded},
}

// deletableStatuses are the only states an order may be removed from.
var deletableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusCancelled,
}

var knownStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:    true,
	domain.OrderStatusConfirmed:  true,
	domain.OrderStatusProcessing: true,
	domain.OrderStatusShipping:   true,
	domain.OrderStatusDelivered:  true,
	domain.OrderStatusReturned:   true,
	domain.OrderStatusCancelled:  true,
	domain.OrderStatusRefunded:   true,
	domain.OrderStatusFailed:     true,
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	Products    repositories.ProductRepository
	Promotions  repositories.PromotionRepository
	Carts       repositories.CartRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	products   repositories.ProductRepository
	promotions repositories.PromotionRepository
	carts      repositories.CartRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		products:   deps.Products,
		promotions: deps.Promotions,
		carts:      deps.Carts,
		counters:   deps.Counters,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	lines, err := mergeOrderLines(cmd.Items)
	if err != nil {
		return Order{}, err
	}
	if cmd.ShippingFee < 0 {
		return Order{}, fmt.Errorf("%w: shipping fee cannot be negative", ErrOrderInvalidInput)
	}
	if cmd.Discount < 0 {
		return Order{}, fmt.Errorf("%w: discount cannot be negative", ErrOrderInvalidInput)
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	switch method {
	case domain.PaymentMethodCOD, domain.PaymentMethodVNPay, domain.PaymentMethodCard:
	default:
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, method)
	}

	now := s.now()

	// The counter allocator runs its own transaction, so the number is taken
	// before the order transaction opens. A failed create leaves a gap in the
	// sequence, which is fine.
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:              s.nextOrderID(),
		Number:          number,
		UserID:          userID,
		ShippingFee:     domain.Round2(cmd.ShippingFee),
		Discount:        domain.Round2(cmd.Discount),
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	payment := Payment{
		ID:            s.nextPaymentID(),
		OrderID:       order.ID,
		Method:        method,
		Status:        domain.PaymentStatusUnpaid,
		TransactionID: s.nextTransactionID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.PaymentID = payment.ID

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		// Transaction reads must all happen before the first write.
		items, totalQuantity, subtotal, err := s.priceOrderLines(txCtx, lines, now)
		if err != nil {
			return err
		}
		order.Items = items
		order.TotalQuantity = totalQuantity
		order.TotalPrice = domain.Round2(subtotal + order.ShippingFee - order.Discount)
		payment.Amount = order.TotalPrice

		if err := s.products.DecrementStock(txCtx, stockLines(lines)); err != nil {
			return s.mapStockError(err)
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.payments.Insert(txCtx, payment); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if cmd.ClearCart && s.carts != nil {
		productIDs := make([]string, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}
		// Cart cleanup is best effort; the order already exists.
		if err := s.carts.RemoveLines(ctx, userID, productIDs); err != nil {
			s.logger(ctx, "order.cart.cleanup.failed", map[string]any{
				"order": order.ID,
				"user":  userID,
				"error": err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CurrentStatus: string(order.Status),
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentMethod": string(method),
			"totalPrice":    order.TotalPrice,
		},
	})

	return order, nil
}

// priceOrderLines resolves products and their promotion windows, freezing the
// effective unit price per line. Runs inside the order transaction.
func (s *orderService) priceOrderLines(ctx context.Context, lines []OrderLineInput, at time.Time) ([]OrderItem, int, float64, error) {
	items := make([]OrderItem, 0, len(lines))
	totalQuantity := 0
	subtotal := 0.0

	for _, line := range lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if isNotFound(err) {
				return nil, 0, 0, fmt.Errorf("%w: product %s", ErrOrderProductUnavailable, line.ProductID)
			}
			return nil, 0, 0, s.mapRepositoryError(err)
		}
		if !product.IsActive {
			return nil, 0, 0, fmt.Errorf("%w: product %s is inactive", ErrOrderProductUnavailable, line.ProductID)
		}
		if product.StockQuantity < line.Quantity {
			return nil, 0, 0, fmt.Errorf("%w: product %s has %d left, requested %d",
				ErrOrderInsufficientStock, line.ProductID, product.StockQuantity, line.Quantity)
		}

		promotion, err := s.resolvePromotion(ctx, product.PromotionID)
		if err != nil {
			return nil, 0, 0, err
		}

		unit := domain.EffectiveUnitPrice(product.Price, promotion, at)
		lineTotal := domain.Round2(unit * float64(line.Quantity))
		items = append(items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       unit,
			SubTotal:    lineTotal,
		})
		totalQuantity += line.Quantity
		subtotal += lineTotal
	}

	return items, totalQuantity, domain.Round2(subtotal), nil
}

func (s *orderService) resolvePromotion(ctx context.Context, promotionID string) (*Promotion, error) {
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" || s.promotions == nil {
		return nil, nil
	}
	promotion, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		// A dangling promotion reference prices at list.
		if isNotFound(err) {
			return nil, nil
		}
		return nil, s.mapRepositoryError(err)
	}
	return &promotion, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(string(cmd.TargetStatus))))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !knownStatuses[target] {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	// Re-asserting the current status is a no-op, not an error.
	if order.Status == target {
		return order, nil
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.now()
	prevStatus := order.Status
	order.Status = target
	order.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		switch target {
		case domain.OrderStatusDelivered:
			if err := s.settleCODOnDelivery(txCtx, order, now); err != nil {
				return err
			}
		case domain.OrderStatusCancelled:
			if err := s.products.RestoreStock(txCtx, stockLinesFromItems(order.Items)); err != nil {
				return s.mapStockError(err)
			}
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metadata := map[string]any{}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return order, nil
}

// settleCODOnDelivery marks an unpaid cash-on-delivery payment as collected.
// Gateway payments keep whatever state reconciliation already gave them.
func (s *orderService) settleCODOnDelivery(ctx context.Context, order Order, now time.Time) error {
	if strings.TrimSpace(order.PaymentID) == "" {
		return nil
	}
	payment, err := s.payments.FindByID(ctx, order.PaymentID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return s.mapRepositoryError(err)
	}
	if payment.Method != domain.PaymentMethodCOD || payment.Status != domain.PaymentStatusUnpaid {
		return nil
	}
	payment.Status = domain.PaymentStatusPaid
	payment.PaymentDate = &now
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, payment); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) Delete(ctx context.Context, cmd DeleteOrderCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if !slices.Contains(deletableStatuses, order.Status) {
		return fmt.Errorf("%w: order status %s cannot be deleted", ErrOrderInvalidState, order.Status)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		// A pending order still holds its stock; a cancelled one already
		// returned it during the transition.
		if order.Status == domain.OrderStatusPending {
			if err := s.products.RestoreStock(txCtx, stockLinesFromItems(order.Items)); err != nil {
				return s.mapStockError(err)
			}
		}
		if id := strings.TrimSpace(order.PaymentID); id != "" {
			if err := s.payments.Delete(txCtx, id); err != nil && !isNotFound(err) {
				return s.mapRepositoryError(err)
			}
		}
		if err := s.orders.Delete(txCtx, order.ID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		PreviousStatus: string(order.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     s.now(),
	})
	return nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) mapStockError(err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficient:
			return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
		case repositories.StockErrorProductNotFound:
			return fmt.Errorf("%w: %v", ErrOrderProductUnavailable, err)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SKC-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) nextPaymentID() string {
	return paymentIDPrefix + s.newID()
}

func (s *orderService) nextTransactionID() string {
	return transactionIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// mergeOrderLines validates and collapses duplicate product references so a
// product appears at most once per order.
func mergeOrderLines(inputs []OrderLineInput) ([]OrderLineInput, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	index := make(map[string]int, len(inputs))
	merged := make([]OrderLineInput, 0, len(inputs))
	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product id is required on every item", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for product %s", ErrOrderInvalidInput, productID)
		}
		if at, ok := index[productID]; ok {
			merged[at].Quantity += input.Quantity
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, OrderLineInput{ProductID: productID, Quantity: input.Quantity})
	}
	return merged, nil
}

func stockLines(lines []OrderLineInput) []repositories.StockLine {
	out := make([]repositories.StockLine, len(lines))
	for i, line := range lines {
		out[i] = repositories.StockLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return out
}

func stockLinesFromItems(items []OrderItem) []repositories.StockLine {
	out := make([]repositories.StockLine, len(items))
	for i, item := range items {
		out[i] = repositories.StockLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
