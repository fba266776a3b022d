package handlers

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/auth"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/httpx"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

const (
	maxPaymentBodySize = 16 * 1024
	maxWebhookBodySize = 64 * 1024
)

// PaymentHandlers exposes the buyer-facing payment endpoints.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
	orders   services.OrderService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService, orders services.OrderService) *PaymentHandlers {
	return &PaymentHandlers{authn: authn, payments: payments, orders: orders}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/gateway/create", h.createPaymentURL)
	r.Get("/order/{orderID}", h.getOrderPayment)
}

type createPaymentURLRequest struct {
	OrderID   string `json:"order_id"`
	OrderInfo string `json:"order_info"`
}

type createPaymentURLResponse struct {
	PaymentURL string `json:"payment_url"`
}

func (h *PaymentHandlers) createPaymentURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createPaymentURLRequest
	if err := decodeJSONBody(r, maxPaymentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	if !h.ownsOrder(w, r, identity, req.OrderID) {
		return
	}

	paymentURL, err := h.payments.CreatePaymentURL(ctx, services.PaymentURLCommand{
		OrderID:   req.OrderID,
		OrderInfo: req.OrderInfo,
		ClientIP:  clientIP(r),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, createPaymentURLResponse{PaymentURL: paymentURL})
}

func (h *PaymentHandlers) getOrderPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if !h.ownsOrder(w, r, identity, orderID) {
		return
	}

	payment, err := h.payments.GetByOrder(ctx, orderID)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentResponse{Payment: buildPaymentPayload(payment)})
}

// ownsOrder hides other users' orders behind a 404.
func (h *PaymentHandlers) ownsOrder(w http.ResponseWriter, r *http.Request, identity *auth.Identity, orderID string) bool {
	ctx := r.Context()
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return false
	}
	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return false
	}
	return true
}

// WebhookHandlers terminates the gateway's server-to-server and browser legs.
type WebhookHandlers struct {
	payments     services.PaymentService
	stripeSecret string
}

// WebhookOption customises the webhook surface.
type WebhookOption func(*WebhookHandlers)

// WithStripeWebhook enables the Stripe event endpoint, verifying deliveries
// against the given endpoint signing secret.
func WithStripeWebhook(secret string) WebhookOption {
	return func(h *WebhookHandlers) {
		h.stripeSecret = strings.TrimSpace(secret)
	}
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(payments services.PaymentService, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{payments: payments}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/vnpay/ipn", h.vnpayIPN)
	r.Get("/vnpay/return", h.vnpayReturn)
	if h.stripeSecret != "" {
		r.Post("/stripe/events", h.stripeEvents)
	}
}

// vnpayIPN always answers 200 with a gateway response code; an HTTP error
// would only make the gateway retry a delivery we have already classified.
func (h *WebhookHandlers) vnpayIPN(w http.ResponseWriter, r *http.Request) {
	resp := h.payments.ProcessIPN(r.Context(), r.URL.Query())
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *WebhookHandlers) vnpayReturn(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.payments.ProcessReturn(r.Context(), r.URL.Query())
	if err != nil || redirect == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("payment_error", "failed to process payment return", http.StatusInternalServerError))
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// stripeEvents verifies the delivery signature and reconciles the referenced
// order against the provider's record. Unhandled event types are acknowledged
// so Stripe does not retry them.
func (h *WebhookHandlers) stripeEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil || len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read event payload", http.StatusBadRequest))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.stripeSecret)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "event signature verification failed", http.StatusBadRequest))
		return
	}

	switch string(event.Type) {
	case "checkout.session.completed", "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	orderID := stripeEventOrderID(event)
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event carries no order reference", http.StatusBadRequest))
		return
	}

	if _, err := h.payments.Reconcile(ctx, orderID); err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func stripeEventOrderID(event stripe.Event) string {
	meta, _ := event.Data.Object["metadata"].(map[string]any)
	orderID, _ := meta["order_id"].(string)
	return strings.TrimSpace(orderID)
}

type paymentResponse struct {
	Payment paymentPayload `json:"payment"`
}

type paymentPayload struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id,omitempty"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

func buildPaymentPayload(payment domain.Payment) paymentPayload {
	return paymentPayload{
		ID:            strings.TrimSpace(payment.ID),
		OrderID:       strings.TrimSpace(payment.OrderID),
		Method:        string(payment.Method),
		Status:        string(payment.Status),
		Amount:        payment.Amount,
		TransactionID: strings.TrimSpace(payment.TransactionID),
		PaymentDate:   formatTimePtr(payment.PaymentDate),
		CreatedAt:     formatTime(payment.CreatedAt),
		UpdatedAt:     formatTime(payment.UpdatedAt),
	}
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentAlreadySettled):
		httpx.WriteError(ctx, w, httpx.NewError("payment_already_settled", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGatewayUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_unavailable", "payment gateway unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}

// clientIP trusts middleware.RealIP to have rewritten RemoteAddr already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
