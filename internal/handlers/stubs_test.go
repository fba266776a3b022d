package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/payments"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/auth"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

var errStubNotConfigured = errors.New("stub not configured")

// withIdentity attaches an authenticated principal to the request, standing in
// for the Firebase middleware.
func withIdentity(r *http.Request, uid string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleUser}}))
}

func newJSONRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

type stubOrderService struct {
	createFn     func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn        func(context.Context, string) (services.Order, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFn func(context.Context, services.OrderStatusTransitionCommand) (services.Order, error)
	deleteFn     func(context.Context, services.DeleteOrderCommand) error
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) Get(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Order]{}, errStubNotConfigured
	}
	return s.listFn(ctx, filter)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFn == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.transitionFn(ctx, cmd)
}

func (s *stubOrderService) Delete(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn == nil {
		return errStubNotConfigured
	}
	return s.deleteFn(ctx, cmd)
}

type stubPaymentService struct {
	createURLFn func(context.Context, services.PaymentURLCommand) (string, error)
	ipnFn       func(context.Context, url.Values) payments.IPNResponse
	returnFn    func(context.Context, url.Values) (string, error)
	getFn       func(context.Context, string) (services.Payment, error)
	reconcileFn func(context.Context, string) (services.Payment, error)
	overrideFn  func(context.Context, services.PaymentStatusOverrideCommand) (services.Payment, error)
}

func (s *stubPaymentService) CreatePaymentURL(ctx context.Context, cmd services.PaymentURLCommand) (string, error) {
	if s.createURLFn == nil {
		return "", errStubNotConfigured
	}
	return s.createURLFn(ctx, cmd)
}

func (s *stubPaymentService) ProcessIPN(ctx context.Context, query url.Values) payments.IPNResponse {
	if s.ipnFn == nil {
		return payments.IPNResponse{RspCode: payments.IPNCodeUnknownError, Message: "Unknown error"}
	}
	return s.ipnFn(ctx, query)
}

func (s *stubPaymentService) ProcessReturn(ctx context.Context, query url.Values) (string, error) {
	if s.returnFn == nil {
		return "", errStubNotConfigured
	}
	return s.returnFn(ctx, query)
}

func (s *stubPaymentService) GetByOrder(ctx context.Context, orderID string) (services.Payment, error) {
	if s.getFn == nil {
		return services.Payment{}, errStubNotConfigured
	}
	return s.getFn(ctx, orderID)
}

func (s *stubPaymentService) Reconcile(ctx context.Context, orderID string) (services.Payment, error) {
	if s.reconcileFn == nil {
		return services.Payment{}, errStubNotConfigured
	}
	return s.reconcileFn(ctx, orderID)
}

func (s *stubPaymentService) OverrideStatus(ctx context.Context, cmd services.PaymentStatusOverrideCommand) (services.Payment, error) {
	if s.overrideFn == nil {
		return services.Payment{}, errStubNotConfigured
	}
	return s.overrideFn(ctx, cmd)
}

type stubCartService struct {
	getFn    func(context.Context, string) (services.Cart, error)
	addFn    func(context.Context, services.UpsertCartLineCommand) (services.Cart, error)
	updateFn func(context.Context, services.UpsertCartLineCommand) (services.Cart, error)
	removeFn func(context.Context, string, []string) (services.Cart, error)
	clearFn  func(context.Context, string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFn == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.getFn(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
	if s.addFn == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.addFn(ctx, cmd)
}

func (s *stubCartService) UpdateItem(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
	if s.updateFn == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.updateFn(ctx, cmd)
}

func (s *stubCartService) RemoveItems(ctx context.Context, userID string, productIDs []string) (services.Cart, error) {
	if s.removeFn == nil {
		return services.Cart{}, errStubNotConfigured
	}
	return s.removeFn(ctx, userID, productIDs)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn == nil {
		return errStubNotConfigured
	}
	return s.clearFn(ctx, userID)
}

type stubCatalogService struct {
	listFn   func(context.Context, services.ProductListFilter) (domain.CursorPage[services.Product], error)
	getFn    func(context.Context, string) (services.Product, error)
	createFn func(context.Context, services.UpsertProductCommand) (services.Product, error)
	updateFn func(context.Context, services.UpsertProductCommand) (services.Product, error)
	deleteFn func(context.Context, string) error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Product]{}, errStubNotConfigured
	}
	return s.listFn(ctx, filter)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFn == nil {
		return services.Product{}, errStubNotConfigured
	}
	return s.getFn(ctx, productID)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createFn == nil {
		return services.Product{}, errStubNotConfigured
	}
	return s.createFn(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateFn == nil {
		return services.Product{}, errStubNotConfigured
	}
	return s.updateFn(ctx, cmd)
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteFn == nil {
		return errStubNotConfigured
	}
	return s.deleteFn(ctx, productID)
}

type stubPromotionService struct {
	listFn   func(context.Context, services.PromotionListFilter) (domain.CursorPage[services.Promotion], error)
	getFn    func(context.Context, string) (services.Promotion, error)
	createFn func(context.Context, services.UpsertPromotionCommand) (services.Promotion, error)
	updateFn func(context.Context, services.UpsertPromotionCommand) (services.Promotion, error)
	deleteFn func(context.Context, string) error
}

func (s *stubPromotionService) ListPromotions(ctx context.Context, filter services.PromotionListFilter) (domain.CursorPage[services.Promotion], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Promotion]{}, errStubNotConfigured
	}
	return s.listFn(ctx, filter)
}

func (s *stubPromotionService) GetPromotion(ctx context.Context, promotionID string) (services.Promotion, error) {
	if s.getFn == nil {
		return services.Promotion{}, errStubNotConfigured
	}
	return s.getFn(ctx, promotionID)
}

func (s *stubPromotionService) CreatePromotion(ctx context.Context, cmd services.UpsertPromotionCommand) (services.Promotion, error) {
	if s.createFn == nil {
		return services.Promotion{}, errStubNotConfigured
	}
	return s.createFn(ctx, cmd)
}

func (s *stubPromotionService) UpdatePromotion(ctx context.Context, cmd services.UpsertPromotionCommand) (services.Promotion, error) {
	if s.updateFn == nil {
		return services.Promotion{}, errStubNotConfigured
	}
	return s.updateFn(ctx, cmd)
}

func (s *stubPromotionService) DeletePromotion(ctx context.Context, promotionID string) error {
	if s.deleteFn == nil {
		return errStubNotConfigured
	}
	return s.deleteFn(ctx, promotionID)
}

type stubMediaService struct {
	signFn func(context.Context, services.SignProductImageCommand) (services.UploadTicket, error)
}

func (s *stubMediaService) SignProductImageUpload(ctx context.Context, cmd services.SignProductImageCommand) (services.UploadTicket, error) {
	if s.signFn == nil {
		return services.UploadTicket{}, errStubNotConfigured
	}
	return s.signFn(ctx, cmd)
}

type stubSystemService struct {
	reportFn func(context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn == nil {
		return services.SystemHealthReport{}, errStubNotConfigured
	}
	return s.reportFn(ctx)
}

type stubReviewService struct {
	createFn func(context.Context, services.CreateReviewCommand) (services.Review, error)
	listFn   func(context.Context, string, services.Pagination) (domain.CursorPage[services.Review], error)
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	if s.createFn == nil {
		return services.Review{}, errStubNotConfigured
	}
	return s.createFn(ctx, cmd)
}

func (s *stubReviewService) ListByProduct(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Review]{}, errStubNotConfigured
	}
	return s.listFn(ctx, productID, pager)
}
