package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/domain"
	pfirestore "github.com/huynhdinhluyen/skincare-product-sales-backend/internal/platform/firestore"
	"github.com/huynhdinhluyen/skincare-product-sales-backend/internal/repositories"
)

const cartsCollection = "carts"

// The cart document is keyed by the owning user id: one cart per user.
type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartLineDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
}

// CartRepository persists the single cart document per user.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

// FindByUser loads the cart for the given user.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	snapshot, err := getDoc(ctx, ref)
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.get", err)
	}
	var doc cartDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Cart{}, fmt.Errorf("firestore carts decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodeCart(snapshot.Ref.ID, doc), nil
}

// Upsert replaces the cart document, keyed by the owning user.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	now := time.Now()
	doc := cartDocument{
		UserID:    uid,
		Items:     encodeCartLines(cart.Items),
		CreatedAt: normalizeTime(cart.CreatedAt, now),
		UpdatedAt: now.UTC(),
	}
	if err := setDoc(ctx, ref, doc); err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.upsert", err)
	}
	return decodeCart(uid, doc), nil
}

// RemoveLines deletes the named product lines, ignoring products not present
// and treating a missing cart as already clear.
func (r *CartRepository) RemoveLines(ctx context.Context, userID string, productIDs []string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	if len(productIDs) == 0 {
		return nil
	}

	cart, err := r.FindByUser(ctx, userID)
	if err != nil {
		if status.Code(err) == codes.NotFound || isNotFoundRepoError(err) {
			return nil
		}
		return err
	}

	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[strings.TrimSpace(id)] = struct{}{}
	}

	kept := cart.Items[:0]
	for _, line := range cart.Items {
		if _, ok := drop[line.ProductID]; !ok {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(cart.Items) {
		return nil
	}
	cart.Items = kept
	_, err = r.Upsert(ctx, cart)
	return err
}

// Clear removes the cart document entirely.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return err
	}
	if err := deleteDoc(ctx, ref); err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}

func encodeCartLines(lines []domain.CartLine) []cartLineDocument {
	out := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" || line.Quantity <= 0 {
			continue
		}
		out = append(out, cartLineDocument{ProductID: id, Quantity: line.Quantity})
	}
	return out
}

func decodeCart(id string, doc cartDocument) domain.Cart {
	items := make([]domain.CartLine, 0, len(doc.Items))
	for _, line := range doc.Items {
		items = append(items, domain.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return domain.Cart{
		ID:        id,
		UserID:    doc.UserID,
		Items:     items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func isNotFoundRepoError(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

var _ repositories.CartRepository = (*CartRepository)(nil)
