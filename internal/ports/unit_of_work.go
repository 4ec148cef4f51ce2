package ports

import "context"

// Tx is an opaque transaction handle owned by the persistence adapter.
type Tx interface{}

// UnitOfWork is a transaction boundary: fn returning an error rolls back, nil
// commits. Nested calls join the outer transaction.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
