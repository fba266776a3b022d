package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/services"
)

func TestInternalReconcileHandler(t *testing.T) {
	paySvc := &stubPaymentService{
		reconcileFn: func(_ context.Context, orderID string) (services.Payment, error) {
			return services.Payment{ID: "pay_1", OrderID: orderID, Method: domain.PaymentMethodCard, Status: domain.PaymentStatusPaid, Amount: 51}, nil
		},
	}

	r := chi.NewRouter()
	NewInternalHandlers(paySvc).Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/payments/ord_1/reconcile", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp paymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Payment.OrderID != "ord_1" || resp.Payment.Status != "PAID" {
		t.Fatalf("unexpected payment payload %+v", resp.Payment)
	}
}

func TestInternalReconcileHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown order", err: services.ErrPaymentNotFound, want: http.StatusNotFound},
		{name: "not a card payment", err: services.ErrPaymentInvalidInput, want: http.StatusBadRequest},
		{name: "provider unreachable", err: services.ErrPaymentGatewayUnavailable, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			paySvc := &stubPaymentService{
				reconcileFn: func(context.Context, string) (services.Payment, error) {
					return services.Payment{}, tc.err
				},
			}

			r := chi.NewRouter()
			NewInternalHandlers(paySvc).Routes(r)

			req := httptest.NewRequest(http.MethodPost, "/payments/ord_1/reconcile", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
