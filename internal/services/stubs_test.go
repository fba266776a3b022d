package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

// In-memory repository fakes shared by the service tests.

type notFoundErr struct{ msg string }

func (e notFoundErr) Error() string       { return e.msg }
func (e notFoundErr) IsNotFound() bool    { return true }
func (e notFoundErr) IsConflict() bool    { return false }
func (e notFoundErr) IsUnavailable() bool { return false }

type conflictErr struct{ msg string }

func (e conflictErr) Error() string       { return e.msg }
func (e conflictErr) IsNotFound() bool    { return false }
func (e conflictErr) IsConflict() bool    { return true }
func (e conflictErr) IsUnavailable() bool { return false }

type memProducts struct {
	mu    sync.Mutex
	items map[string]domain.Product
}

func newMemProducts(products ...domain.Product) *memProducts {
	m := &memProducts{items: make(map[string]domain.Product)}
	for _, p := range products {
		m.items[p.ID] = p
	}
	return m
}

func (m *memProducts) Insert(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[product.ID]; ok {
		return conflictErr{msg: "product exists"}
	}
	m.items[product.ID] = product
	return nil
}

func (m *memProducts) Update(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[product.ID]; !ok {
		return notFoundErr{msg: "product missing"}
	}
	m.items[product.ID] = product
	return nil
}

func (m *memProducts) Delete(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[productID]; !ok {
		return notFoundErr{msg: "product missing"}
	}
	delete(m.items, productID)
	return nil
}

func (m *memProducts) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.items[productID]
	if !ok {
		return domain.Product{}, notFoundErr{msg: "product missing"}
	}
	return product, nil
}

func (m *memProducts) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.items {
		if filter.OnlyActive && !p.IsActive {
			continue
		}
		if filter.Search != "" {
			match := false
			for _, kw := range p.SearchKeywords {
				if kw == filter.Search {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.CursorPage[domain.Product]{Items: out}, nil
}

func (m *memProducts) DecrementStock(ctx context.Context, lines []repositories.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		p, ok := m.items[line.ProductID]
		if !ok {
			return repositories.NewStockError(repositories.StockErrorProductNotFound, line.ProductID, "missing", nil)
		}
		if p.StockQuantity < line.Quantity {
			return repositories.NewStockError(repositories.StockErrorInsufficient,
				line.ProductID, fmt.Sprintf("have %d want %d", p.StockQuantity, line.Quantity), nil)
		}
	}
	for _, line := range lines {
		p := m.items[line.ProductID]
		p.StockQuantity -= line.Quantity
		p.Sold += line.Quantity
		m.items[line.ProductID] = p
	}
	return nil
}

func (m *memProducts) RestoreStock(ctx context.Context, lines []repositories.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		p, ok := m.items[line.ProductID]
		if !ok {
			return repositories.NewStockError(repositories.StockErrorProductNotFound, line.ProductID, "missing", nil)
		}
		p.StockQuantity += line.Quantity
		if p.Sold -= line.Quantity; p.Sold < 0 {
			p.Sold = 0
		}
		m.items[line.ProductID] = p
	}
	return nil
}

func (m *memProducts) UpdateRatingSummary(ctx context.Context, productID string, average float64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[productID]
	if !ok {
		return notFoundErr{msg: "product missing"}
	}
	p.AverageRating = average
	p.ReviewCount = count
	m.items[productID] = p
	return nil
}

func (m *memProducts) get(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

type memOrders struct {
	mu    sync.Mutex
	items map[string]domain.Order
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{items: make(map[string]domain.Order)}
	for _, o := range orders {
		m.items[o.ID] = o
	}
	return m
}

func (m *memOrders) Insert(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[order.ID]; ok {
		return conflictErr{msg: "order exists"}
	}
	m.items[order.ID] = order
	return nil
}

func (m *memOrders) Update(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[order.ID]; !ok {
		return notFoundErr{msg: "order missing"}
	}
	m.items[order.ID] = order
	return nil
}

func (m *memOrders) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[orderID]; !ok {
		return notFoundErr{msg: "order missing"}
	}
	delete(m.items, orderID)
	return nil
}

func (m *memOrders) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.items[orderID]
	if !ok {
		return domain.Order{}, notFoundErr{msg: "order missing"}
	}
	return order, nil
}

func (m *memOrders) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.items {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				if string(o.Status) == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.CursorPage[domain.Order]{Items: out}, nil
}

func (m *memOrders) get(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memPayments struct {
	mu    sync.Mutex
	items map[string]domain.Payment
}

func newMemPayments(payments ...domain.Payment) *memPayments {
	m := &memPayments{items: make(map[string]domain.Payment)}
	for _, p := range payments {
		m.items[p.ID] = p
	}
	return m
}

func (m *memPayments) Insert(ctx context.Context, payment domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[payment.ID]; ok {
		return conflictErr{msg: "payment exists"}
	}
	m.items[payment.ID] = payment
	return nil
}

func (m *memPayments) Update(ctx context.Context, payment domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[payment.ID]; !ok {
		return notFoundErr{msg: "payment missing"}
	}
	m.items[payment.ID] = payment
	return nil
}

func (m *memPayments) Delete(ctx context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[paymentID]; !ok {
		return notFoundErr{msg: "payment missing"}
	}
	delete(m.items, paymentID)
	return nil
}

func (m *memPayments) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.items[paymentID]
	if !ok {
		return domain.Payment{}, notFoundErr{msg: "payment missing"}
	}
	return payment, nil
}

func (m *memPayments) FindByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.items {
		if payment.OrderID == orderID {
			return payment, nil
		}
	}
	return domain.Payment{}, notFoundErr{msg: "payment missing"}
}

func (m *memPayments) get(id string) domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memPayments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memCarts struct {
	mu    sync.Mutex
	items map[string]domain.Cart
}

func newMemCarts(carts ...domain.Cart) *memCarts {
	m := &memCarts{items: make(map[string]domain.Cart)}
	for _, c := range carts {
		m.items[c.UserID] = c
	}
	return m
}

func (m *memCarts) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.items[userID]
	if !ok {
		return domain.Cart{}, notFoundErr{msg: "cart missing"}
	}
	return cart, nil
}

func (m *memCarts) Upsert(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart.ID = cart.UserID
	m.items[cart.UserID] = cart
	return cart, nil
}

func (m *memCarts) RemoveLines(ctx context.Context, userID string, productIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.items[userID]
	if !ok {
		return nil
	}
	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[strings.TrimSpace(id)] = struct{}{}
	}
	kept := cart.Items[:0]
	for _, line := range cart.Items {
		if _, gone := drop[line.ProductID]; !gone {
			kept = append(kept, line)
		}
	}
	cart.Items = kept
	m.items[userID] = cart
	return nil
}

func (m *memCarts) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, userID)
	return nil
}

func (m *memCarts) get(userID string) (domain.Cart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.items[userID]
	return cart, ok
}

type memPromotions struct {
	mu    sync.Mutex
	items map[string]domain.Promotion
}

func newMemPromotions(promotions ...domain.Promotion) *memPromotions {
	m := &memPromotions{items: make(map[string]domain.Promotion)}
	for _, p := range promotions {
		m.items[p.ID] = p
	}
	return m
}

func (m *memPromotions) Insert(ctx context.Context, promotion domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[promotion.ID]; ok {
		return conflictErr{msg: "promotion exists"}
	}
	m.items[promotion.ID] = promotion
	return nil
}

func (m *memPromotions) Update(ctx context.Context, promotion domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[promotion.ID]; !ok {
		return notFoundErr{msg: "promotion missing"}
	}
	m.items[promotion.ID] = promotion
	return nil
}

func (m *memPromotions) Delete(ctx context.Context, promotionID string, deletedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	promotion, ok := m.items[promotionID]
	if !ok {
		return notFoundErr{msg: "promotion missing"}
	}
	promotion.IsDeleted = true
	promotion.IsActive = false
	promotion.UpdatedAt = deletedAt
	m.items[promotionID] = promotion
	return nil
}

func (m *memPromotions) FindByID(ctx context.Context, promotionID string) (domain.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	promotion, ok := m.items[promotionID]
	if !ok {
		return domain.Promotion{}, notFoundErr{msg: "promotion missing"}
	}
	return promotion, nil
}

func (m *memPromotions) List(ctx context.Context, filter repositories.PromotionListFilter) (domain.CursorPage[domain.Promotion], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Promotion
	for _, p := range m.items {
		if !filter.IncludeDeleted && p.IsDeleted {
			continue
		}
		if filter.OnlyActive && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.CursorPage[domain.Promotion]{Items: out}, nil
}

func (m *memPromotions) get(id string) domain.Promotion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

type memReviews struct {
	mu    sync.Mutex
	items map[string]domain.Review
}

func newMemReviews() *memReviews {
	return &memReviews{items: make(map[string]domain.Review)}
}

func (m *memReviews) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[review.ID]; ok {
		return domain.Review{}, conflictErr{msg: "review exists"}
	}
	m.items[review.ID] = review
	return review, nil
}

func (m *memReviews) FindByUserAndProduct(ctx context.Context, userID string, productID string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, review := range m.items {
		if review.UserID == userID && review.ProductID == productID {
			return review, nil
		}
	}
	return domain.Review{}, notFoundErr{msg: "review missing"}
}

func (m *memReviews) ListByProduct(ctx context.Context, productID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, review := range m.items {
		if review.ProductID == productID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.CursorPage[domain.Review]{Items: out}, nil
}

type memCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMemCounters() *memCounters {
	return &memCounters{values: make(map[string]int64)}
}

func (m *memCounters) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step <= 0 {
		step = 1
	}
	m.values[counterID] += step
	return m.values[counterID], nil
}

func (m *memCounters) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(eventType string) []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []OrderEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%04d", prefix, n)
	}
}
