package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
)

var testNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

type orderServiceFixture struct {
	service    OrderService
	products   *memProducts
	orders     *memOrders
	payments   *memPayments
	carts      *memCarts
	promotions *memPromotions
	events     *recordingPublisher
}

func newOrderServiceFixture(t *testing.T, products *memProducts, promotions *memPromotions, carts *memCarts) orderServiceFixture {
	t.Helper()
	orders := newMemOrders()
	payments := newMemPayments()
	events := &recordingPublisher{}
	if promotions == nil {
		promotions = newMemPromotions()
	}
	if carts == nil {
		carts = newMemCarts()
	}

	service, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Payments:    payments,
		Products:    products,
		Promotions:  promotions,
		Carts:       carts,
		Counters:    newMemCounters(),
		Clock:       fixedClock(testNow),
		IDGenerator: sequenceIDs("id"),
		Events:      events,
	})
	if err != nil {
		t.Fatalf("NewOrderService returned error: %v", err)
	}
	return orderServiceFixture{
		service:    service,
		products:   products,
		orders:     orders,
		payments:   payments,
		carts:      carts,
		promotions: promotions,
		events:     events,
	}
}

func activePromotion(id string, rate float64) domain.Promotion {
	return domain.Promotion{
		ID:           id,
		Name:         "seasonal sale",
		DiscountRate: rate,
		StartDate:    testNow.Add(-24 * time.Hour),
		EndDate:      testNow.Add(24 * time.Hour),
		IsActive:     true,
	}
}

func TestCreateOrderAppliesPromotionWindow(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Vitamin C Serum", Price: 60.00, StockQuantity: 10, IsActive: true, PromotionID: "promo_1",
	})
	fixture := newOrderServiceFixture(t, products, newMemPromotions(activePromotion("promo_1", 15)), nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID:          "user_1",
		Items:           []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
		ShippingAddress: "12 Nguyen Hue, District 1",
		PaymentMethod:   domain.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if order.Items[0].Price != 51.00 {
		t.Fatalf("expected discounted unit price 51.00, got %v", order.Items[0].Price)
	}
	if order.Items[0].SubTotal != 51.00 {
		t.Fatalf("expected line subtotal 51.00, got %v", order.Items[0].SubTotal)
	}
	if order.TotalPrice != 51.00 {
		t.Fatalf("expected order total 51.00, got %v", order.TotalPrice)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected new order PENDING, got %s", order.Status)
	}
	if order.Number != "SKC-2025-000001" {
		t.Fatalf("unexpected order number %q", order.Number)
	}

	product := fixture.products.get("prd_1")
	if product.StockQuantity != 9 || product.Sold != 1 {
		t.Fatalf("expected stock 9 sold 1, got stock %d sold %d", product.StockQuantity, product.Sold)
	}

	payment := fixture.payments.get(order.PaymentID)
	if payment.Status != domain.PaymentStatusUnpaid {
		t.Fatalf("expected payment UNPAID, got %s", payment.Status)
	}
	if payment.Amount != 51.00 {
		t.Fatalf("expected payment amount 51.00, got %v", payment.Amount)
	}
	if payment.TransactionID == "" {
		t.Fatal("expected opaque transaction id assigned at creation")
	}

	if created := fixture.events.byType("order.created"); len(created) != 1 {
		t.Fatalf("expected one order.created event, got %d", len(created))
	}
}

func TestCreateOrderIgnoresClosedPromotionWindow(t *testing.T) {
	expired := activePromotion("promo_1", 15)
	expired.StartDate = testNow.Add(-48 * time.Hour)
	expired.EndDate = testNow.Add(-24 * time.Hour)

	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Vitamin C Serum", Price: 60.00, StockQuantity: 10, IsActive: true, PromotionID: "promo_1",
	})
	fixture := newOrderServiceFixture(t, products, newMemPromotions(expired), nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.Items[0].Price != 60.00 {
		t.Fatalf("expected list price outside the window, got %v", order.Items[0].Price)
	}
	if order.TotalPrice != 120.00 {
		t.Fatalf("expected total 120.00, got %v", order.TotalPrice)
	}
}

func TestCreateOrderTotalIsNotClamped(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Sample", Price: 20.00, StockQuantity: 5, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID:   "user_1",
		Items:    []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
		Discount: 50.00,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.TotalPrice != -30.00 {
		t.Fatalf("expected unclamped total -30.00, got %v", order.TotalPrice)
	}
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 10, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items: []OrderLineInput{
			{ProductID: "prd_1", Quantity: 2},
			{ProductID: "prd_1", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 5 || order.TotalQuantity != 5 {
		t.Fatalf("expected merged quantity 5, got line %d total %d", order.Items[0].Quantity, order.TotalQuantity)
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Toner", Price: 15.00, StockQuantity: 2, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	_, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 3}},
	})
	if !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("expected ErrOrderInsufficientStock, got %v", err)
	}
	if fixture.orders.count() != 0 || fixture.payments.count() != 0 {
		t.Fatal("expected no order or payment persisted on failure")
	}
	if product := fixture.products.get("prd_1"); product.StockQuantity != 2 {
		t.Fatalf("expected stock untouched, got %d", product.StockQuantity)
	}
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Retired", Price: 15.00, StockQuantity: 5, IsActive: false,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	_, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if !errors.Is(err, ErrOrderProductUnavailable) {
		t.Fatalf("expected ErrOrderProductUnavailable, got %v", err)
	}
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)

	cases := []CreateOrderCommand{
		{UserID: "", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 1}}},
		{UserID: "user_1"},
		{UserID: "user_1", Items: []OrderLineInput{{ProductID: "", Quantity: 1}}},
		{UserID: "user_1", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 0}}},
		{UserID: "user_1", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 1}}, ShippingFee: -1},
		{UserID: "user_1", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 1}}, PaymentMethod: "BARTER"},
	}
	for i, cmd := range cases {
		if _, err := fixture.service.Create(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("case %d: expected ErrOrderInvalidInput, got %v", i, err)
		}
	}
}

func TestCreateOrderClearsPurchasedCartLines(t *testing.T) {
	products := newMemProducts(
		domain.Product{ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 10, IsActive: true},
		domain.Product{ID: "prd_2", Name: "Moisturiser", Price: 25.00, StockQuantity: 10, IsActive: true},
	)
	carts := newMemCarts(domain.Cart{
		ID:     "user_1",
		UserID: "user_1",
		Items: []domain.CartLine{
			{ProductID: "prd_1", Quantity: 2},
			{ProductID: "prd_2", Quantity: 1},
		},
	})
	fixture := newOrderServiceFixture(t, products, nil, carts)

	_, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID:    "user_1",
		Items:     []OrderLineInput{{ProductID: "prd_1", Quantity: 2}},
		ClearCart: true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	cart, ok := fixture.carts.get("user_1")
	if !ok {
		t.Fatal("expected cart to survive with remaining lines")
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "prd_2" {
		t.Fatalf("expected only the unpurchased line to remain, got %+v", cart.Items)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusProcessing, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipping, false},
		{domain.OrderStatusPending, domain.OrderStatusDelivered, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusProcessing, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusDelivered, false},
		{domain.OrderStatusProcessing, domain.OrderStatusShipping, true},
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusProcessing, domain.OrderStatusDelivered, false},
		{domain.OrderStatusShipping, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipping, domain.OrderStatusReturned, true},
		{domain.OrderStatusShipping, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusReturned, true},
		{domain.OrderStatusDelivered, domain.OrderStatusRefunded, false},
		{domain.OrderStatusReturned, domain.OrderStatusRefunded, true},
		{domain.OrderStatusReturned, domain.OrderStatusDelivered, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
		{domain.OrderStatusRefunded, domain.OrderStatusPending, false},
		{domain.OrderStatusFailed, domain.OrderStatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("transition %s to %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func seedOrder(fixture orderServiceFixture, status domain.OrderStatus, method domain.PaymentMethod) domain.Order {
	payment := domain.Payment{
		ID:      "pay_seed",
		OrderID: "ord_seed",
		Method:  method,
		Status:  domain.PaymentStatusUnpaid,
		Amount:  30.00,
	}
	order := domain.Order{
		ID:        "ord_seed",
		Number:    "SKC-2025-000010",
		UserID:    "user_1",
		Status:    status,
		PaymentID: payment.ID,
		Items: []domain.OrderItem{
			{ProductID: "prd_1", ProductName: "Cleanser", Quantity: 3, Price: 10.00, SubTotal: 30.00},
		},
		TotalQuantity: 3,
		TotalPrice:    30.00,
	}
	_ = fixture.orders.Insert(context.Background(), order)
	_ = fixture.payments.Insert(context.Background(), payment)
	return order
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)
	seedOrder(fixture, domain.OrderStatusConfirmed, domain.PaymentMethodCOD)

	order, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_seed",
		TargetStatus: domain.OrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if events := fixture.events.byType("order.status.changed"); len(events) != 0 {
		t.Fatalf("expected no event for same-state transition, got %d", len(events))
	}
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)
	seedOrder(fixture, domain.OrderStatusPending, domain.PaymentMethodCOD)

	_, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_seed",
		TargetStatus: domain.OrderStatusDelivered,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestTransitionToDeliveredSettlesCOD(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)
	seedOrder(fixture, domain.OrderStatusShipping, domain.PaymentMethodCOD)

	order, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_seed",
		TargetStatus: domain.OrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("unexpected status %s", order.Status)
	}

	payment := fixture.payments.get("pay_seed")
	if payment.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected COD payment marked PAID on delivery, got %s", payment.Status)
	}
	if payment.PaymentDate == nil || !payment.PaymentDate.Equal(testNow) {
		t.Fatalf("expected payment date %v, got %v", testNow, payment.PaymentDate)
	}
}

func TestTransitionToDeliveredLeavesGatewayPaymentAlone(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)
	seedOrder(fixture, domain.OrderStatusShipping, domain.PaymentMethodVNPay)

	if _, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      "ord_seed",
		TargetStatus: domain.OrderStatusDelivered,
	}); err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}

	payment := fixture.payments.get("pay_seed")
	if payment.Status != domain.PaymentStatusUnpaid {
		t.Fatalf("expected gateway payment untouched, got %s", payment.Status)
	}
}

func TestCancellationRestoresStock(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 10, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if product := fixture.products.get("prd_1"); product.StockQuantity != 6 || product.Sold != 4 {
		t.Fatalf("expected stock 6 sold 4 after create, got %d/%d", product.StockQuantity, product.Sold)
	}

	if _, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
	}); err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}

	product := fixture.products.get("prd_1")
	if product.StockQuantity != 10 || product.Sold != 0 {
		t.Fatalf("expected stock restored to 10 sold 0, got %d/%d", product.StockQuantity, product.Sold)
	}
}

func TestDeletePendingOrderRestoresStock(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 8, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := fixture.service.Delete(context.Background(), DeleteOrderCommand{OrderID: order.ID}); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if fixture.orders.count() != 0 {
		t.Fatal("expected order removed")
	}
	if fixture.payments.count() != 0 {
		t.Fatal("expected owned payment removed with the order")
	}
	if product := fixture.products.get("prd_1"); product.StockQuantity != 8 {
		t.Fatalf("expected stock back to 8, got %d", product.StockQuantity)
	}
}

func TestDeleteCancelledOrderDoesNotRestoreTwice(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 8, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	order, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1",
		Items:  []OrderLineInput{{ProductID: "prd_1", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := fixture.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
	}); err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}

	if err := fixture.service.Delete(context.Background(), DeleteOrderCommand{OrderID: order.ID}); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if product := fixture.products.get("prd_1"); product.StockQuantity != 8 {
		t.Fatalf("expected stock 8 after cancel+delete, got %d", product.StockQuantity)
	}
}

func TestDeleteRejectsFulfilledOrder(t *testing.T) {
	fixture := newOrderServiceFixture(t, newMemProducts(), nil, nil)
	seedOrder(fixture, domain.OrderStatusConfirmed, domain.PaymentMethodCOD)

	err := fixture.service.Delete(context.Background(), DeleteOrderCommand{OrderID: "ord_seed"})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
	if fixture.orders.count() != 1 {
		t.Fatal("expected order to remain")
	}
}

func TestOrderNumbersIncrement(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Cleanser", Price: 10.00, StockQuantity: 100, IsActive: true,
	})
	fixture := newOrderServiceFixture(t, products, nil, nil)

	first, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, err := fixture.service.Create(context.Background(), CreateOrderCommand{
		UserID: "user_1", Items: []OrderLineInput{{ProductID: "prd_1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if first.Number != "SKC-2025-000001" || second.Number != "SKC-2025-000002" {
		t.Fatalf("unexpected order numbers %q, %q", first.Number, second.Number)
	}
}
