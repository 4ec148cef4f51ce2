package uow

import (
	"context"

	"gorm.io/gorm"

	"readconfirm/internal/ports"
)

// UnitOfWork runs a callback inside one gorm transaction. Repositories pick the
// transaction up from the context.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
