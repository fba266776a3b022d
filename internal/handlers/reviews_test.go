package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

func newReviewRouter(svc services.ReviewService) chi.Router {
	r := chi.NewRouter()
	NewReviewHandlers(nil, svc).Routes(r)
	return r
}

func TestCreateReviewHandler(t *testing.T) {
	var captured services.CreateReviewCommand
	svc := &stubReviewService{
		createFn: func(_ context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			captured = cmd
			return services.Review{ID: "rev_1", ProductID: cmd.ProductID, UserID: cmd.UserID, Rating: cmd.Rating, Content: cmd.Content}, nil
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":5,"content":"great product"}`), "user_1")
	rec := httptest.NewRecorder()
	newReviewRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "user_1" || captured.ProductID != "prd_1" || captured.Rating != 5 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp reviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Review.ID != "rev_1" {
		t.Fatalf("unexpected review payload %+v", resp.Review)
	}
}

func TestCreateReviewHandlerMapsEligibilityError(t *testing.T) {
	svc := &stubReviewService{
		createFn: func(context.Context, services.CreateReviewCommand) (services.Review, error) {
			return services.Review{}, fmt.Errorf("%w: no delivered order", services.ErrReviewNotEligible)
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":5}`), "user_1")
	rec := httptest.NewRecorder()
	newReviewRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreateReviewHandlerMapsDuplicateError(t *testing.T) {
	svc := &stubReviewService{
		createFn: func(context.Context, services.CreateReviewCommand) (services.Review, error) {
			return services.Review{}, fmt.Errorf("%w: product prd_1", services.ErrReviewDuplicate)
		},
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":4}`), "user_1")
	rec := httptest.NewRecorder()
	newReviewRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateReviewHandlerRateLimitsPerUser(t *testing.T) {
	svc := &stubReviewService{
		createFn: func(_ context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			return services.Review{ID: "rev_1", ProductID: cmd.ProductID}, nil
		},
	}
	router := newReviewRouter(svc)

	for i := 0; i < reviewRateLimit; i++ {
		req := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":5}`), "user_1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, rec.Code)
		}
	}

	req := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":5}`), "user_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}

	other := withIdentity(newJSONRequest(http.MethodPost, "/", `{"product_id":"prd_1","rating":5}`), "user_2")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected other users unaffected, got %d", rec.Code)
	}
}
