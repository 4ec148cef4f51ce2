package confirmation

import "errors"

var (
	ErrItemIDRequired   = errors.New("item id is required")
	ErrInvalidItemID    = errors.New("invalid item id")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrUnknownAction    = errors.New("unknown confirmation action")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBadToken         = errors.New("action token is invalid or expired")
	ErrWriteConflict    = errors.New("confirmation record changed concurrently")
)
