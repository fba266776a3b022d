package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

// InternalHandlers exposes the service-to-service operational endpoints.
// Callers authenticate with a request HMAC rather than Firebase identities,
// so the router mounts this group behind the signature middleware.
type InternalHandlers struct {
	payments services.PaymentService
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(payments services.PaymentService) *InternalHandlers {
	return &InternalHandlers{payments: payments}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/{orderID}/reconcile", h.reconcilePayment)
}

func (h *InternalHandlers) reconcilePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payment, err := h.payments.Reconcile(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentResponse{Payment: buildPaymentPayload(payment)})
}
