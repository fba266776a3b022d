package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/payments"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentNotFound indicates the payment record could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentAlreadySettled indicates the payment is already PAID and cannot change.
	ErrPaymentAlreadySettled = errors.New("payment: already settled")
	// ErrPaymentGatewayUnavailable indicates no gateway is configured for the flow.
	ErrPaymentGatewayUnavailable = errors.New("payment: gateway unavailable")
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders     repositories.OrderRepository
	Payments   repositories.PaymentRepository
	UnitOfWork repositories.UnitOfWork
	Gateway    *payments.VNPayGateway
	// Providers routes card checkout to the configured PSP adapters.
	Providers *payments.Manager
	// Frontend redirect targets for the browser return leg.
	SuccessURL string
	FailureURL string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	unitOfWork repositories.UnitOfWork
	gateway    *payments.VNPayGateway
	providers  *payments.Manager
	successURL string
	failureURL string
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		unitOfWork: unit,
		gateway:    deps.Gateway,
		providers:  deps.Providers,
		successURL: strings.TrimSpace(deps.SuccessURL),
		failureURL: strings.TrimSpace(deps.FailureURL),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *paymentService) CreatePaymentURL(ctx context.Context, cmd PaymentURLCommand) (string, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	payment, err := s.findOrderPayment(ctx, order)
	if err != nil {
		return "", err
	}
	if payment.Status == domain.PaymentStatusPaid {
		return "", fmt.Errorf("%w: order %s", ErrPaymentAlreadySettled, order.ID)
	}

	if payment.Method == domain.PaymentMethodCard {
		return s.createCardCheckout(ctx, order, payment)
	}

	if s.gateway == nil {
		return "", ErrPaymentGatewayUnavailable
	}
	// The order id itself is the gateway reference, so the notification leg
	// can resolve the order without any correlation state.
	redirect, err := s.gateway.BuildPaymentURL(payments.PaymentURLRequest{
		TxnRef:    order.ID,
		Amount:    order.TotalPrice,
		OrderInfo: strings.TrimSpace(cmd.OrderInfo),
		ClientIP:  cmd.ClientIP,
		CreatedAt: cmd.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	return redirect, nil
}

// cardCheckoutCurrency is the settlement currency for the card provider
// route; VNPay keeps the domestic VND flow.
const cardCheckoutCurrency = "USD"

func (s *paymentService) createCardCheckout(ctx context.Context, order Order, payment Payment) (string, error) {
	if s.providers == nil {
		return "", ErrPaymentGatewayUnavailable
	}

	items := make([]payments.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.CheckoutLineItem{
			Name:     item.ProductName,
			SKU:      item.ProductID,
			Quantity: int64(item.Quantity),
			Amount:   minorUnits(item.Price),
			Currency: cardCheckoutCurrency,
		})
	}

	session, err := s.providers.CreateCheckoutSession(ctx, payments.PaymentContext{Currency: cardCheckoutCurrency}, payments.CheckoutSessionRequest{
		Amount:         minorUnits(order.TotalPrice),
		Currency:       cardCheckoutCurrency,
		CustomerID:     order.UserID,
		SuccessURL:     s.successURL,
		CancelURL:      s.failureURL,
		Metadata:       map[string]string{"order_id": order.ID},
		IdempotencyKey: payment.ID,
		Items:          items,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}

	// The provider intent id is the reconciliation handle for webhook and
	// pull-based settlement.
	if intentID := strings.TrimSpace(session.IntentID); intentID != "" && intentID != payment.TransactionID {
		payment.TransactionID = intentID
		payment.UpdatedAt = s.clock()
		if err := s.payments.Update(ctx, payment); err != nil {
			return "", s.mapRepositoryError(err)
		}
	}
	return session.RedirectURL, nil
}

func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ProcessIPN handles the gateway's server-to-server notification. The gateway
// keeps retrying until it gets a definitive response, so every outcome maps
// to a response code rather than an HTTP error.
func (s *paymentService) ProcessIPN(ctx context.Context, query url.Values) payments.IPNResponse {
	if s.gateway == nil {
		return payments.IPNResponse{RspCode: payments.IPNCodeUnknownError, Message: "Gateway not configured"}
	}
	if !s.gateway.VerifyCallback(query) {
		return payments.IPNResponse{RspCode: payments.IPNCodeInvalidChecksum, Message: "Invalid Checksum"}
	}
	if !payments.CallbackSuccessful(query) {
		// The gateway reports its own failure; nothing to record.
		return payments.IPNResponse{RspCode: payments.IPNCodeUnknownError, Message: "Transaction failed"}
	}
	orderID := payments.CallbackTxnRef(query)
	if orderID == "" {
		return payments.IPNResponse{RspCode: payments.IPNCodeOrderNotFound, Message: "Order not found"}
	}

	resp := payments.IPNResponse{RspCode: payments.IPNCodeSuccess, Message: "Confirm Success"}
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			if isNotFound(err) {
				resp = payments.IPNResponse{RspCode: payments.IPNCodeOrderNotFound, Message: "Order not found"}
				return nil
			}
			return err
		}
		payment, err := s.findOrderPayment(txCtx, order)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				resp = payments.IPNResponse{RspCode: payments.IPNCodeOrderNotFound, Message: "Order not found"}
				return nil
			}
			return err
		}
		if payment.Status == domain.PaymentStatusPaid {
			resp = payments.IPNResponse{RspCode: payments.IPNCodeAlreadyConfirmed, Message: "Order already confirmed"}
			return nil
		}

		now := s.clock()
		paidAt := payments.CallbackPayDate(query, now)
		payment.Status = domain.PaymentStatusPaid
		payment.PaymentDate = &paidAt
		payment.UpdatedAt = now
		if txnNo := payments.CallbackTransactionNo(query); txnNo != "" {
			payment.TransactionID = txnNo
		}
		if err := s.payments.Update(txCtx, payment); err != nil {
			return err
		}
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusConfirmed
			order.UpdatedAt = now
			if err := s.orders.Update(txCtx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger(ctx, "payment.ipn.failed", map[string]any{
			"order": orderID,
			"error": err.Error(),
		})
		return payments.IPNResponse{RspCode: payments.IPNCodeUnknownError, Message: "Unknown error"}
	}
	return resp
}

// ProcessReturn handles the browser redirect leg. The notification leg is
// authoritative, so this only picks the frontend landing page.
func (s *paymentService) ProcessReturn(ctx context.Context, query url.Values) (string, error) {
	if s.gateway == nil {
		return "", ErrPaymentGatewayUnavailable
	}
	if !s.gateway.VerifyCallback(query) {
		return appendQueryParam(s.failureURL, "code", payments.IPNCodeInvalidChecksum), nil
	}
	code := payments.CallbackResponseCode(query)
	if code == "" {
		code = payments.IPNCodeUnknownError
	}
	if !payments.CallbackSuccessful(query) {
		return appendQueryParam(s.failureURL, "code", code), nil
	}
	return appendQueryParam(s.successURL, "code", code), nil
}

func (s *paymentService) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	return payment, nil
}

// Reconcile pulls the provider's record for a card payment and settles the
// local payment and order to match. Safe to repeat; a settled payment is
// returned unchanged.
func (s *paymentService) Reconcile(ctx context.Context, orderID string) (Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	payment, err := s.findOrderPayment(ctx, order)
	if err != nil {
		return Payment{}, err
	}
	if payment.Status == domain.PaymentStatusPaid {
		return payment, nil
	}
	if payment.Method != domain.PaymentMethodCard {
		return Payment{}, fmt.Errorf("%w: order %s is not a card payment", ErrPaymentInvalidInput, order.ID)
	}
	if s.providers == nil {
		return Payment{}, ErrPaymentGatewayUnavailable
	}
	intentID := strings.TrimSpace(payment.TransactionID)
	if intentID == "" {
		return Payment{}, fmt.Errorf("%w: order %s has no provider reference", ErrPaymentInvalidInput, order.ID)
	}

	details, err := s.providers.LookupPayment(ctx, payments.PaymentContext{Currency: cardCheckoutCurrency}, payments.LookupRequest{IntentID: intentID})
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}

	switch details.Status {
	case payments.StatusSucceeded:
	case payments.StatusFailed:
	default:
		// Pending or refunded records leave the local state untouched.
		return payment, nil
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		loaded, err := s.findOrderPayment(txCtx, order)
		if err != nil {
			return err
		}
		payment = loaded
		if payment.Status == domain.PaymentStatusPaid {
			return nil
		}

		now := s.clock()
		switch details.Status {
		case payments.StatusSucceeded:
			paidAt := now
			if details.CapturedAt != nil {
				paidAt = details.CapturedAt.UTC()
			}
			payment.Status = domain.PaymentStatusPaid
			payment.PaymentDate = &paidAt
		case payments.StatusFailed:
			if payment.Status == domain.PaymentStatusFailed {
				return nil
			}
			payment.Status = domain.PaymentStatusFailed
		}
		payment.UpdatedAt = now
		if err := s.payments.Update(txCtx, payment); err != nil {
			return s.mapRepositoryError(err)
		}

		current, err := s.orders.FindByID(txCtx, order.ID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if current.Status != domain.OrderStatusPending {
			return nil
		}
		switch payment.Status {
		case domain.PaymentStatusPaid:
			current.Status = domain.OrderStatusConfirmed
		case domain.PaymentStatusFailed:
			current.Status = domain.OrderStatusFailed
		}
		current.UpdatedAt = now
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.logger(ctx, "payment.reconciled", map[string]any{
		"order":    order.ID,
		"provider": details.Provider,
		"status":   string(payment.Status),
	})
	return payment, nil
}

func (s *paymentService) OverrideStatus(ctx context.Context, cmd PaymentStatusOverrideCommand) (Payment, error) {
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}
	switch cmd.Status {
	case domain.PaymentStatusPaid, domain.PaymentStatusFailed:
	default:
		return Payment{}, fmt.Errorf("%w: status must be PAID or FAILED, got %q", ErrPaymentInvalidInput, cmd.Status)
	}

	var payment Payment
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		loaded, err := s.payments.FindByID(txCtx, paymentID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		payment = loaded
		if payment.Status == cmd.Status {
			return nil
		}
		if payment.Status == domain.PaymentStatusPaid {
			return fmt.Errorf("%w: payment %s", ErrPaymentAlreadySettled, payment.ID)
		}

		order, orderErr := s.orders.FindByID(txCtx, payment.OrderID)
		now := s.clock()
		payment.Status = cmd.Status
		payment.UpdatedAt = now
		if cmd.Status == domain.PaymentStatusPaid {
			payment.PaymentDate = &now
		}
		if err := s.payments.Update(txCtx, payment); err != nil {
			return s.mapRepositoryError(err)
		}

		if orderErr != nil {
			if isNotFound(orderErr) {
				return nil
			}
			return s.mapRepositoryError(orderErr)
		}
		if order.Status != domain.OrderStatusPending {
			return nil
		}
		switch cmd.Status {
		case domain.PaymentStatusPaid:
			order.Status = domain.OrderStatusConfirmed
		case domain.PaymentStatusFailed:
			order.Status = domain.OrderStatusFailed
		}
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.logger(ctx, "payment.status.overridden", map[string]any{
		"payment": payment.ID,
		"status":  string(payment.Status),
		"actor":   strings.TrimSpace(cmd.ActorID),
		"reason":  strings.TrimSpace(cmd.Reason),
	})
	return payment, nil
}

func (s *paymentService) findOrderPayment(ctx context.Context, order Order) (Payment, error) {
	if id := strings.TrimSpace(order.PaymentID); id != "" {
		payment, err := s.payments.FindByID(ctx, id)
		if err == nil {
			return payment, nil
		}
		if !isNotFound(err) {
			return Payment{}, s.mapRepositoryError(err)
		}
	}
	payment, err := s.payments.FindByOrderID(ctx, order.ID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	return payment, nil
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("payment: conflict: %w", err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func appendQueryParam(base string, key string, value string) string {
	if base == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + key + "=" + url.QueryEscape(value)
}
