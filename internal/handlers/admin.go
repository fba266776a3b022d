package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/auth"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/httpx"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/pagination"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

const maxAdminBodySize = 256 * 1024

// AdminHandlers exposes the staff endpoints for catalogue, promotion, order
// and payment management.
type AdminHandlers struct {
	authn      *auth.Authenticator
	catalog    services.CatalogService
	promotions services.PromotionService
	orders     services.OrderService
	payments   services.PaymentService
	media      services.MediaService
}

// AdminOption customises optional admin handler collaborators.
type AdminOption func(*AdminHandlers)

// WithMediaService enables the signed image-upload endpoint.
func WithMediaService(media services.MediaService) AdminOption {
	return func(h *AdminHandlers) {
		h.media = media
	}
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(
	authn *auth.Authenticator,
	catalog services.CatalogService,
	promotions services.PromotionService,
	orders services.OrderService,
	payments services.PaymentService,
	opts ...AdminOption,
) *AdminHandlers {
	h := &AdminHandlers{
		authn:      authn,
		catalog:    catalog,
		promotions: promotions,
		orders:     orders,
		payments:   payments,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
	}

	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	if h.media != nil {
		r.Post("/products/{productID}/images:sign", h.signProductImage)
	}

	r.Post("/promotions", h.createPromotion)
	r.Put("/promotions/{promotionID}", h.updatePromotion)
	r.Delete("/promotions/{promotionID}", h.deletePromotion)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)

	r.Patch("/payments/{paymentID}/status", h.overridePaymentStatus)
}

type productRequest struct {
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Images        []string `json:"images"`
	Price         float64  `json:"price"`
	StockQuantity int      `json:"stock_quantity"`
	PromotionID   string   `json:"promotion_id"`
	IsActive      bool     `json:"is_active"`
}

func (req productRequest) toProduct() services.Product {
	return services.Product{
		Name:          req.Name,
		Brand:         req.Brand,
		Description:   req.Description,
		Category:      req.Category,
		Images:        req.Images,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		PromotionID:   req.PromotionID,
		IsActive:      req.IsActive,
	}
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.UpsertProductCommand{
		Product: req.toProduct(),
		ActorID: identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product := req.toProduct()
	product.ID = strings.TrimSpace(chi.URLParam(r, "productID"))

	updated, err := h.catalog.UpdateProduct(ctx, services.UpsertProductCommand{
		Product: product,
		ActorID: identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(updated)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID"))); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signProductImageRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	ContentMD5  string `json:"content_md5"`
}

type uploadTicketResponse struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	Bucket     string            `json:"bucket"`
	ObjectPath string            `json:"object_path"`
	ExpiresAt  string            `json:"expires_at"`
}

func (h *AdminHandlers) signProductImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req signProductImageRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	ticket, err := h.media.SignProductImageUpload(ctx, services.SignProductImageCommand{
		ProductID:   strings.TrimSpace(chi.URLParam(r, "productID")),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		ContentMD5:  req.ContentMD5,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeMediaError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, uploadTicketResponse{
		URL:        ticket.URL,
		Method:     ticket.Method,
		Headers:    ticket.Headers,
		Bucket:     ticket.Bucket,
		ObjectPath: ticket.ObjectPath,
		ExpiresAt:  formatTime(ticket.ExpiresAt),
	})
}

type promotionRequest struct {
	Name         string  `json:"name"`
	DiscountRate float64 `json:"discount_rate"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	IsActive     bool    `json:"is_active"`
}

func (req promotionRequest) toPromotion(w http.ResponseWriter, r *http.Request) (services.Promotion, bool) {
	ctx := r.Context()
	var start, end time.Time
	if raw := strings.TrimSpace(req.StartDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "start_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.Promotion{}, false
		}
		start = ts
	}
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "end_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.Promotion{}, false
		}
		end = ts
	}
	return services.Promotion{
		Name:         req.Name,
		DiscountRate: req.DiscountRate,
		StartDate:    start,
		EndDate:      end,
		IsActive:     req.IsActive,
	}, true
}

func (h *AdminHandlers) createPromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req promotionRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	promotion, ok := req.toPromotion(w, r)
	if !ok {
		return
	}

	created, err := h.promotions.CreatePromotion(ctx, services.UpsertPromotionCommand{
		Promotion: promotion,
		ActorID:   identity.UID,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, promotionResponse{Promotion: buildPromotionPayload(created)})
}

func (h *AdminHandlers) updatePromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req promotionRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	promotion, ok := req.toPromotion(w, r)
	if !ok {
		return
	}
	promotion.ID = strings.TrimSpace(chi.URLParam(r, "promotionID"))

	updated, err := h.promotions.UpdatePromotion(ctx, services.UpsertPromotionCommand{
		Promotion: promotion,
		ActorID:   identity.UID,
	})
	if err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, promotionResponse{Promotion: buildPromotionPayload(updated)})
}

func (h *AdminHandlers) deletePromotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.promotions.DeletePromotion(ctx, strings.TrimSpace(chi.URLParam(r, "promotionID"))); err != nil {
		writePromotionError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	pageParams, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultOrderPageSize, MaxPageSize: maxOrderPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID: strings.TrimSpace(query.Get("user_id")),
		Status: normalizeStatusFilters(parseFilterValues(query["status"])),
		Pagination: services.Pagination{
			PageSize:  pageParams.PageSize,
			PageToken: pageParams.PageToken,
		},
	}

	page, err := h.orders.List(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.Get(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      strings.TrimSpace(chi.URLParam(r, "orderID")),
		TargetStatus: domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		ActorID:      identity.UID,
		Reason:       req.Reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type overridePaymentStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *AdminHandlers) overridePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req overridePaymentStatusRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	payment, err := h.payments.OverrideStatus(ctx, services.PaymentStatusOverrideCommand{
		PaymentID: strings.TrimSpace(chi.URLParam(r, "paymentID")),
		Status:    domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		ActorID:   identity.UID,
		Reason:    req.Reason,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentResponse{Payment: buildPaymentPayload(payment)})
}
