package payments

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name        string
	sessionErr  error
	refundCalls int
	lookupCalls int
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if s.sessionErr != nil {
		return CheckoutSession{}, s.sessionErr
	}
	return CheckoutSession{ID: "sess_" + s.name}, nil
}

func (s *stubProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	s.refundCalls++
	return PaymentDetails{Provider: s.name, Status: StatusRefunded}, nil
}

func (s *stubProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	s.lookupCalls++
	return PaymentDetails{Provider: s.name, IntentID: req.IntentID}, nil
}

func TestNewManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewManager(map[string]Provider{" ": &stubProvider{}}); err == nil {
		t.Fatal("expected error for blank provider key")
	}
	if _, err := NewManager(map[string]Provider{"vnpay": nil}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestManagerDefaultsToDomesticGateway(t *testing.T) {
	vnpay := &stubProvider{name: "vnpay"}
	stripe := &stubProvider{name: "stripe"}
	manager, err := NewManager(map[string]Provider{"vnpay": vnpay, "stripe": stripe})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	session, err := manager.CreateCheckoutSession(context.Background(), PaymentContext{}, CheckoutSessionRequest{Amount: 1000})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}
	if session.Provider != "vnpay" {
		t.Fatalf("expected default provider vnpay, got %q", session.Provider)
	}
}

func TestManagerPreferredProviderWins(t *testing.T) {
	vnpay := &stubProvider{name: "vnpay"}
	stripe := &stubProvider{name: "stripe"}
	manager, err := NewManager(map[string]Provider{"vnpay": vnpay, "stripe": stripe})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	session, err := manager.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "Stripe"}, CheckoutSessionRequest{Amount: 1000})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}
	if session.Provider != "stripe" {
		t.Fatalf("expected preferred provider stripe, got %q", session.Provider)
	}
}

func TestManagerCurrencyRouting(t *testing.T) {
	vnpay := &stubProvider{name: "vnpay"}
	stripe := &stubProvider{name: "stripe"}
	manager, err := NewManager(
		map[string]Provider{"vnpay": vnpay, "stripe": stripe},
		WithCurrencyRoutes(map[string]string{"usd": "stripe"}),
	)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	session, err := manager.CreateCheckoutSession(context.Background(), PaymentContext{Currency: "USD"}, CheckoutSessionRequest{Amount: 1000, Currency: "USD"})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}
	if session.Provider != "stripe" {
		t.Fatalf("expected currency route to stripe, got %q", session.Provider)
	}

	session, err = manager.CreateCheckoutSession(context.Background(), PaymentContext{Currency: "VND"}, CheckoutSessionRequest{Amount: 1000, Currency: "VND"})
	if err != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", err)
	}
	if session.Provider != "vnpay" {
		t.Fatalf("expected unrouted currency to use the default, got %q", session.Provider)
	}
}

func TestManagerSingleProviderFallback(t *testing.T) {
	stripe := &stubProvider{name: "stripe"}
	manager, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	details, err := manager.Refund(context.Background(), PaymentContext{}, RefundRequest{IntentID: "pi_1"})
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if details.Provider != "stripe" || stripe.refundCalls != 1 {
		t.Fatalf("expected the sole provider to handle the refund, got %+v", details)
	}
}

func TestManagerUnknownPreferredFallsThrough(t *testing.T) {
	manager, err := NewManager(map[string]Provider{"vnpay": &stubProvider{name: "vnpay"}})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	details, err := manager.LookupPayment(context.Background(), PaymentContext{PreferredProvider: "paypal"}, LookupRequest{IntentID: "pi_2"})
	if err != nil {
		t.Fatalf("LookupPayment returned error: %v", err)
	}
	if details.Provider != "vnpay" {
		t.Fatalf("expected fallthrough to default, got %q", details.Provider)
	}
}

func TestManagerNoResolvableProvider(t *testing.T) {
	manager, err := NewManager(
		map[string]Provider{"vnpay": &stubProvider{name: "vnpay"}, "stripe": &stubProvider{name: "stripe"}},
		WithDefaultProvider("momo"),
	)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	_, err = manager.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "momo"}, CheckoutSessionRequest{Amount: 1000})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
