package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductUnavailable indicates the referenced product is missing or inactive.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartInsufficientStock indicates the requested quantity exceeds available stock.
	ErrCartInsufficientStock = errors.New("cart: insufficient stock")
	// ErrCartLineNotFound indicates the product is not present in the cart.
	ErrCartLineNotFound = errors.New("cart: line not found")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// GetCart returns the user's cart, materialising an empty one when none has
// been stored yet. The empty cart is not persisted until a line is added.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			now := s.clock()
			return Cart{ID: userID, UserID: userID, Items: []CartLine{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		return Cart{}, err
	}
	return cart, nil
}

// AddItem adds the quantity onto any existing line for the product.
func (s *cartService) AddItem(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error) {
	return s.upsertLine(ctx, cmd, true)
}

// UpdateItem replaces the line quantity outright.
func (s *cartService) UpdateItem(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error) {
	return s.upsertLine(ctx, cmd, false)
}

func (s *cartService) upsertLine(ctx context.Context, cmd UpsertCartLineCommand, accumulate bool) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, fmt.Errorf("%w: product %s", ErrCartProductUnavailable, productID)
		}
		return Cart{}, err
	}
	if !product.IsActive {
		return Cart{}, fmt.Errorf("%w: product %s is inactive", ErrCartProductUnavailable, productID)
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	quantity := cmd.Quantity
	found := false
	for i, line := range cart.Items {
		if line.ProductID != productID {
			continue
		}
		if accumulate {
			quantity += line.Quantity
		}
		cart.Items[i].Quantity = quantity
		found = true
		break
	}
	if !found {
		if !accumulate {
			return Cart{}, fmt.Errorf("%w: product %s", ErrCartLineNotFound, productID)
		}
		cart.Items = append(cart.Items, CartLine{ProductID: productID, Quantity: quantity})
	}

	// The cart is a wish, not a reservation, but quantities beyond current
	// stock would only fail later at checkout.
	if quantity > product.StockQuantity {
		return Cart{}, fmt.Errorf("%w: product %s has %d left, requested %d",
			ErrCartInsufficientStock, productID, product.StockQuantity, quantity)
	}

	return s.carts.Upsert(ctx, cart)
}

func (s *cartService) RemoveItems(ctx context.Context, userID string, productIDs []string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if len(productIDs) == 0 {
		return Cart{}, fmt.Errorf("%w: at least one product id is required", ErrCartInvalidInput)
	}
	if err := s.carts.RemoveLines(ctx, userID, productIDs); err != nil {
		return Cart{}, err
	}
	return s.GetCart(ctx, userID)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Clear(ctx, userID); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
