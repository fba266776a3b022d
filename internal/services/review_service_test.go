package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
)

type reviewServiceFixture struct {
	service  ReviewService
	reviews  *memReviews
	products *memProducts
	orders   *memOrders
}

func newReviewServiceFixture(t *testing.T, products *memProducts, orders *memOrders) reviewServiceFixture {
	t.Helper()
	if orders == nil {
		orders = newMemOrders()
	}
	reviews := newMemReviews()
	service, err := NewReviewService(ReviewServiceDeps{
		Reviews:     reviews,
		Products:    products,
		Orders:      orders,
		Clock:       fixedClock(testNow),
		IDGenerator: sequenceIDs("id"),
	})
	if err != nil {
		t.Fatalf("NewReviewService returned error: %v", err)
	}
	return reviewServiceFixture{service: service, reviews: reviews, products: products, orders: orders}
}

func deliveredOrder(id string, userID string, productID string) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		Status: domain.OrderStatusDelivered,
		Items:  []domain.OrderItem{{ProductID: productID, Quantity: 1, Price: 10, SubTotal: 10}},
	}
}

func TestCreateReviewRequiresDeliveredPurchase(t *testing.T) {
	products := newMemProducts(domain.Product{ID: "prd_1", Name: "Serum", Price: 10, IsActive: true})
	fixture := newReviewServiceFixture(t, products, nil)

	_, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID:    "user_1",
		ProductID: "prd_1",
		Rating:    5,
	})
	if !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("expected ErrReviewNotEligible, got %v", err)
	}
}

func TestCreateReviewUpdatesRatingSummary(t *testing.T) {
	products := newMemProducts(domain.Product{
		ID: "prd_1", Name: "Serum", Price: 10, IsActive: true, AverageRating: 4.0, ReviewCount: 3,
	})
	orders := newMemOrders(deliveredOrder("ord_1", "user_1", "prd_1"))
	fixture := newReviewServiceFixture(t, products, orders)

	review, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID:    "user_1",
		ProductID: "prd_1",
		Rating:    5,
		Content:   "Da cải thiện rõ sau hai tuần.",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if review.ID != "rev_id0001" {
		t.Fatalf("unexpected review id %q", review.ID)
	}

	product := fixture.products.get("prd_1")
	if product.ReviewCount != 4 {
		t.Fatalf("expected review count 4, got %d", product.ReviewCount)
	}
	// (4.0*3 + 5) / 4 = 4.25
	if product.AverageRating != 4.25 {
		t.Fatalf("expected average 4.25, got %v", product.AverageRating)
	}
}

func TestCreateReviewStripsMarkup(t *testing.T) {
	products := newMemProducts(domain.Product{ID: "prd_1", Name: "Serum", Price: 10, IsActive: true})
	orders := newMemOrders(deliveredOrder("ord_1", "user_1", "prd_1"))
	fixture := newReviewServiceFixture(t, products, orders)

	review, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID:    "user_1",
		ProductID: "prd_1",
		Rating:    4,
		Content:   `great <script>alert("x")</script> product`,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if review.Content != "great  product" {
		t.Fatalf("expected markup stripped, got %q", review.Content)
	}
}

func TestCreateReviewRejectsDuplicate(t *testing.T) {
	products := newMemProducts(domain.Product{ID: "prd_1", Name: "Serum", Price: 10, IsActive: true})
	orders := newMemOrders(deliveredOrder("ord_1", "user_1", "prd_1"))
	fixture := newReviewServiceFixture(t, products, orders)

	if _, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID: "user_1", ProductID: "prd_1", Rating: 5,
	}); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}
	_, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID: "user_1", ProductID: "prd_1", Rating: 3,
	})
	if !errors.Is(err, ErrReviewDuplicate) {
		t.Fatalf("expected ErrReviewDuplicate, got %v", err)
	}
}

func TestCreateReviewIgnoresUndeliveredOrders(t *testing.T) {
	products := newMemProducts(domain.Product{ID: "prd_1", Name: "Serum", Price: 10, IsActive: true})
	shipping := deliveredOrder("ord_1", "user_1", "prd_1")
	shipping.Status = domain.OrderStatusShipping
	fixture := newReviewServiceFixture(t, products, newMemOrders(shipping))

	_, err := fixture.service.Create(context.Background(), CreateReviewCommand{
		UserID: "user_1", ProductID: "prd_1", Rating: 5,
	})
	if !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("expected ErrReviewNotEligible, got %v", err)
	}
}

func TestCreateReviewValidatesRating(t *testing.T) {
	fixture := newReviewServiceFixture(t, newMemProducts(), nil)

	for _, rating := range []int{0, 6, -1} {
		_, err := fixture.service.Create(context.Background(), CreateReviewCommand{
			UserID: "user_1", ProductID: "prd_1", Rating: rating,
		})
		if !errors.Is(err, ErrReviewInvalidInput) {
			t.Fatalf("rating %d: expected ErrReviewInvalidInput, got %v", rating, err)
		}
	}
}

func TestListReviewsByProduct(t *testing.T) {
	products := newMemProducts(domain.Product{ID: "prd_1", Name: "Serum", Price: 10, IsActive: true})
	orders := newMemOrders(
		deliveredOrder("ord_1", "user_1", "prd_1"),
		deliveredOrder("ord_2", "user_2", "prd_1"),
	)
	fixture := newReviewServiceFixture(t, products, orders)

	for _, userID := range []string{"user_1", "user_2"} {
		if _, err := fixture.service.Create(context.Background(), CreateReviewCommand{
			UserID: userID, ProductID: "prd_1", Rating: 4,
		}); err != nil {
			t.Fatalf("Create for %s returned error: %v", userID, err)
		}
	}

	page, err := fixture.service.ListByProduct(context.Background(), "prd_1", Pagination{})
	if err != nil {
		t.Fatalf("ListByProduct returned error: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(page.Items))
	}
}
