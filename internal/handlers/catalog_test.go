package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

func newCatalogRouter(catalog services.CatalogService, promotions services.PromotionService, reviews services.ReviewService) chi.Router {
	r := chi.NewRouter()
	NewCatalogHandlers(catalog, promotions, reviews).Routes(r)
	return r
}

func TestListProductsHandlerFiltersActiveOnly(t *testing.T) {
	var captured services.ProductListFilter
	catalog := &stubCatalogService{
		listFn: func(_ context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
			captured = filter
			return domain.CursorPage[services.Product]{
				Items: []domain.Product{{
					ID:        "prd_1",
					Name:      "Gentle Cleanser",
					Price:     60,
					IsActive:  true,
					CreatedAt: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
				}},
				NextPageToken: "tok_2",
			}, nil
		},
	}

	req := newJSONRequest(http.MethodGet, "/products?category=Cleanser&brand=Cetaphil&search=gentle&page_size=10", "")
	rec := httptest.NewRecorder()
	newCatalogRouter(catalog, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.OnlyActive {
		t.Fatal("public listing must request active products only")
	}
	if captured.Category == nil || *captured.Category != "Cleanser" {
		t.Fatalf("unexpected category filter %v", captured.Category)
	}
	if captured.Brand == nil || *captured.Brand != "Cetaphil" {
		t.Fatalf("unexpected brand filter %v", captured.Brand)
	}
	if captured.Search != "gentle" || captured.Pagination.PageSize != 10 {
		t.Fatalf("unexpected filter %+v", captured)
	}

	var resp productListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "prd_1" || resp.NextPageToken != "tok_2" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetProductHandlerMapsNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		getFn: func(context.Context, string) (services.Product, error) {
			return services.Product{}, fmt.Errorf("%w: prd_missing", services.ErrCatalogNotFound)
		},
	}

	req := newJSONRequest(http.MethodGet, "/products/prd_missing", "")
	rec := httptest.NewRecorder()
	newCatalogRouter(catalog, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListProductReviewsHandler(t *testing.T) {
	var capturedProduct string
	reviews := &stubReviewService{
		listFn: func(_ context.Context, productID string, _ services.Pagination) (domain.CursorPage[services.Review], error) {
			capturedProduct = productID
			return domain.CursorPage[services.Review]{
				Items: []domain.Review{
					{ID: "rev_1", ProductID: productID, UserID: "user_1", Rating: 5},
					{ID: "rev_2", ProductID: productID, UserID: "user_2", Rating: 4},
				},
			}, nil
		},
	}

	req := newJSONRequest(http.MethodGet, "/products/prd_1/reviews", "")
	rec := httptest.NewRecorder()
	newCatalogRouter(nil, nil, reviews).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if capturedProduct != "prd_1" {
		t.Fatalf("expected product id from path, got %q", capturedProduct)
	}
	var resp reviewListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected two reviews, got %d", len(resp.Items))
	}
}

func TestListProductsHandlerRejectsBadPageSize(t *testing.T) {
	req := newJSONRequest(http.MethodGet, "/products?page_size=abc", "")
	rec := httptest.NewRecorder()
	newCatalogRouter(&stubCatalogService{}, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
