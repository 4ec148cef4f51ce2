package ports

import "context"

// TokenIssuer mints and checks one-time action tokens bound to a user and item.
type TokenIssuer interface {
	Issue(ctx context.Context, action string, userID uint64, itemID uint64) (string, error)
	Verify(ctx context.Context, action string, token string, userID uint64, itemID uint64) (bool, error)
}
