package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"readconfirm/internal/ports"
)

// dbFromContext prefers the transaction opened by the unit of work, if any.
func dbFromContext(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
