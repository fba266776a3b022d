package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

func newCartRouter(svc services.CartService) chi.Router {
	r := chi.NewRouter()
	NewCartHandlers(nil, svc).Routes(r)
	return r
}

func TestAddCartItemHandler(t *testing.T) {
	var captured services.UpsertCartLineCommand
	svc := &stubCartService{
		addFn: func(_ context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{
				UserID: cmd.UserID,
				Items:  []domain.CartLine{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}},
			}, nil
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/items", `{"product_id":"prd_1","quantity":3}`), "user_1")
	rec := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "user_1" || captured.ProductID != "prd_1" || captured.Quantity != 3 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Cart.Items) != 1 || resp.Cart.Items[0].Quantity != 3 {
		t.Fatalf("unexpected cart payload %+v", resp.Cart)
	}
}

func TestAddCartItemHandlerMapsStockError(t *testing.T) {
	svc := &stubCartService{
		addFn: func(context.Context, services.UpsertCartLineCommand) (services.Cart, error) {
			return services.Cart{}, fmt.Errorf("%w: product prd_1 has 2 left, requested 5", services.ErrCartInsufficientStock)
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/items", `{"product_id":"prd_1","quantity":5}`), "user_1")
	rec := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestUpdateCartItemHandlerUsesPathProduct(t *testing.T) {
	var captured services.UpsertCartLineCommand
	svc := &stubCartService{
		updateFn: func(_ context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID}, nil
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPut, "/items/prd_9", `{"quantity":1}`), "user_1")
	rec := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.ProductID != "prd_9" {
		t.Fatalf("expected product id from path, got %q", captured.ProductID)
	}
}

func TestRemoveCartItemsHandler(t *testing.T) {
	var captured []string
	svc := &stubCartService{
		removeFn: func(_ context.Context, userID string, productIDs []string) (services.Cart, error) {
			captured = productIDs
			return services.Cart{UserID: userID}, nil
		},
	}

	req := withIdentity(newJSONRequest(http.MethodDelete, "/items", `{"product_ids":["prd_1","prd_2"]}`), "user_1")
	rec := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(captured) != 2 {
		t.Fatalf("expected two product ids forwarded, got %v", captured)
	}
}

func TestClearCartHandler(t *testing.T) {
	cleared := false
	svc := &stubCartService{
		clearFn: func(_ context.Context, userID string) error {
			cleared = true
			return nil
		},
	}

	req := withIdentity(newJSONRequest(http.MethodDelete, "/", ""), "user_1")
	rec := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !cleared {
		t.Fatal("expected clear to reach the service")
	}
}

func TestCartHandlersRequireAuth(t *testing.T) {
	req := newJSONRequest(http.MethodGet, "/", "")
	rec := httptest.NewRecorder()
	newCartRouter(&stubCartService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
