package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/httpx"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/pagination"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

const (
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
)

// CatalogHandlers exposes the public storefront read endpoints.
type CatalogHandlers struct {
	catalog    services.CatalogService
	promotions services.PromotionService
	reviews    services.ReviewService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService, promotions services.PromotionService, reviews services.ReviewService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog:    catalog,
		promotions: promotions,
		reviews:    reviews,
	}
}

// Routes registers the /public endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/reviews", h.listProductReviews)
	r.Get("/promotions", h.listPromotions)
	r.Get("/promotions/{promotionID}", h.getPromotion)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageParams, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultCatalogPageSize, MaxPageSize: maxCatalogPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ProductListFilter{
		Search:     strings.TrimSpace(query.Get("search")),
		OnlyActive: true,
		Pagination: services.Pagination{
			PageSize:  pageParams.PageSize,
			PageToken: pageParams.PageToken,
		},
	}
	if category := strings.TrimSpace(query.Get("category")); category != "" {
		filter.Category = &category
	}
	if brand := strings.TrimSpace(query.Get("brand")); brand != "" {
		filter.Brand = &brand
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) listProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	pageParams, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultCatalogPageSize, MaxPageSize: maxCatalogPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	page, err := h.reviews.ListByProduct(ctx, productID, services.Pagination{
		PageSize:  pageParams.PageSize,
		PageToken: pageParams.PageToken,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	items := make([]reviewPayload, 0, len(page.Items))
	for _, review := range page.Items {
		items = append(items, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, reviewListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) listPromotions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_service_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	pageParams, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultCatalogPageSize, MaxPageSize: maxCatalogPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.promotions.ListPromotions(ctx, services.PromotionListFilter{
		OnlyActive: true,
		Pagination: services.Pagination{
			PageSize:  pageParams.PageSize,
			PageToken: pageParams.PageToken,
		},
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}

	items := make([]promotionPayload, 0, len(page.Items))
	for _, promotion := range page.Items {
		items = append(items, buildPromotionPayload(promotion))
	}
	writeJSONResponse(w, http.StatusOK, promotionListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getPromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_service_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	promotionID := strings.TrimSpace(chi.URLParam(r, "promotionID"))
	promotion, err := h.promotions.GetPromotion(ctx, promotionID)
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, promotionResponse{Promotion: buildPromotionPayload(promotion)})
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Images        []string `json:"images,omitempty"`
	Price         float64  `json:"price"`
	StockQuantity int      `json:"stock_quantity"`
	Sold          int      `json:"sold"`
	PromotionID   string   `json:"promotion_id,omitempty"`
	AverageRating float64  `json:"average_rating"`
	ReviewCount   int      `json:"review_count"`
	IsActive      bool     `json:"is_active"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

type promotionListResponse struct {
	Items         []promotionPayload `json:"items"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type promotionResponse struct {
	Promotion promotionPayload `json:"promotion"`
}

type promotionPayload struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DiscountRate float64 `json:"discount_rate"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:            strings.TrimSpace(product.ID),
		Name:          strings.TrimSpace(product.Name),
		Brand:         strings.TrimSpace(product.Brand),
		Description:   product.Description,
		Category:      strings.TrimSpace(product.Category),
		Images:        product.Images,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		Sold:          product.Sold,
		PromotionID:   strings.TrimSpace(product.PromotionID),
		AverageRating: product.AverageRating,
		ReviewCount:   product.ReviewCount,
		IsActive:      product.IsActive,
		CreatedAt:     formatTime(product.CreatedAt),
		UpdatedAt:     formatTime(product.UpdatedAt),
	}
}

func buildPromotionPayload(promotion domain.Promotion) promotionPayload {
	return promotionPayload{
		ID:           strings.TrimSpace(promotion.ID),
		Name:         strings.TrimSpace(promotion.Name),
		DiscountRate: promotion.DiscountRate,
		StartDate:    formatTime(promotion.StartDate),
		EndDate:      formatTime(promotion.EndDate),
		IsActive:     promotion.IsActive,
		CreatedAt:    formatTime(promotion.CreatedAt),
		UpdatedAt:    formatTime(promotion.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

func writePromotionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPromotionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPromotionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("promotion_not_found", "promotion not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("promotion_error", "failed to process promotion request", http.StatusInternalServerError))
	}
}

func writeMediaError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMediaInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMediaUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("upload_unavailable", "failed to sign upload url", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("media_error", "failed to process upload request", http.StatusInternalServerError))
	}
}
