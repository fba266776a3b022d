package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	pfirestore "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/firestore"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const paymentsCollection = "payments"

type paymentDocument struct {
	OrderID       string     `firestore:"orderId"`
	Method        string     `firestore:"paymentMethod"`
	Status        string     `firestore:"paymentStatus"`
	Amount        float64    `firestore:"amount"`
	TransactionID string     `firestore:"transactionId,omitempty"`
	PaymentDate   *time.Time `firestore:"paymentDate,omitempty"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

// PaymentRepository stores the payment record owned by each order.
type PaymentRepository struct {
	base     *pfirestore.BaseRepository[paymentDocument]
	provider *pfirestore.Provider
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[paymentDocument](provider, paymentsCollection, nil, nil)
	return &PaymentRepository{base: base, provider: provider}, nil
}

// Insert creates the payment document, failing on duplicate ids.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	if r == nil || r.base == nil {
		return errors.New("payment repository not initialised")
	}
	id := strings.TrimSpace(payment.ID)
	if id == "" {
		return errors.New("payment repository: payment id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := createDoc(ctx, ref, encodePayment(payment, time.Now())); err != nil {
		return pfirestore.WrapError("payments.insert", err)
	}
	return nil
}

// Update overwrites the payment document.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	if r == nil || r.base == nil {
		return errors.New("payment repository not initialised")
	}
	id := strings.TrimSpace(payment.ID)
	if id == "" {
		return errors.New("payment repository: payment id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ref, encodePayment(payment, time.Now())); err != nil {
		return pfirestore.WrapError("payments.update", err)
	}
	return nil
}

// Delete removes the payment document.
func (r *PaymentRepository) Delete(ctx context.Context, paymentID string) error {
	if r == nil || r.base == nil {
		return errors.New("payment repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, ref); err != nil {
		return pfirestore.WrapError("payments.delete", err)
	}
	return nil
}

// FindByID loads a single payment record.
func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	if r == nil || r.base == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return domain.Payment{}, err
	}
	snapshot, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Payment{}, pfirestore.WrapError("payments.get", err)
	}
	var doc paymentDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Payment{}, fmt.Errorf("firestore payments decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodePayment(snapshot.Ref.ID, doc), nil
}

// FindByOrderID resolves the payment owned by the given order.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	if r == nil || r.base == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	oid := strings.TrimSpace(orderID)
	if oid == "" {
		return domain.Payment{}, errors.New("payment repository: order id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", oid).Limit(1)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if len(docs) == 0 {
		return domain.Payment{}, pfirestore.NewNotFoundError("payments.find_by_order", fmt.Sprintf("no payment for order %s", oid))
	}
	return decodePayment(docs[0].ID, docs[0].Data), nil
}

func encodePayment(payment domain.Payment, now time.Time) paymentDocument {
	doc := paymentDocument{
		OrderID:       strings.TrimSpace(payment.OrderID),
		Method:        string(payment.Method),
		Status:        string(payment.Status),
		Amount:        payment.Amount,
		TransactionID: strings.TrimSpace(payment.TransactionID),
		CreatedAt:     normalizeTime(payment.CreatedAt, now),
		UpdatedAt:     normalizeTime(payment.UpdatedAt, now),
	}
	if payment.PaymentDate != nil {
		paid := payment.PaymentDate.UTC()
		doc.PaymentDate = &paid
	}
	return doc
}

func decodePayment(id string, doc paymentDocument) domain.Payment {
	payment := domain.Payment{
		ID:            id,
		OrderID:       doc.OrderID,
		Method:        domain.PaymentMethod(doc.Method),
		Status:        domain.PaymentStatus(doc.Status),
		Amount:        doc.Amount,
		TransactionID: doc.TransactionID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.PaymentDate != nil {
		paid := doc.PaymentDate.UTC()
		payment.PaymentDate = &paid
	}
	return payment
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)
