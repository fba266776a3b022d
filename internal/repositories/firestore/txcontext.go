package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

// withTx returns a context carrying the active Firestore transaction.
func withTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFrom extracts the active transaction from the context, if any.
func txFrom(ctx context.Context) *firestore.Transaction {
	tx, _ := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx
}

// getDoc reads a document through the active transaction when one is present.
func getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx := txFrom(ctx); tx != nil {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

// setDoc writes a document through the active transaction when one is present.
func setDoc(ctx context.Context, ref *firestore.DocumentRef, data any, opts ...firestore.SetOption) error {
	if tx := txFrom(ctx); tx != nil {
		return tx.Set(ref, data, opts...)
	}
	_, err := ref.Set(ctx, data, opts...)
	return err
}

// createDoc creates a document, failing when it already exists.
func createDoc(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if tx := txFrom(ctx); tx != nil {
		return tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)
	return err
}

// updateDoc applies field updates through the active transaction when one is present.
func updateDoc(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update) error {
	if tx := txFrom(ctx); tx != nil {
		return tx.Update(ref, updates)
	}
	_, err := ref.Update(ctx, updates)
	return err
}

// deleteDoc removes a document through the active transaction when one is present.
func deleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	if tx := txFrom(ctx); tx != nil {
		return tx.Delete(ref)
	}
	_, err := ref.Delete(ctx)
	return err
}

func normalizeTime(t time.Time, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback.UTC()
	}
	return t.UTC()
}
