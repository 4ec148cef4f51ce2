package ports

import (
	"context"
	"errors"
)

var (
	ErrItemNotFound = errors.New("content item not found")
	ErrUserNotFound = errors.New("user not found")
)

// Item statuses as the host platform names them.
const (
	StatusPublish = "publish"
	StatusPrivate = "private"
	StatusDraft   = "draft"
)

type ContentItem struct {
	ItemID    uint64
	Type      string
	Title     string
	Body      string
	AuthorID  uint64
	Status    string
	CreatedAt string
	UpdatedAt string
}

type ContentItemFilter struct {
	Type   string
	Status string
}

type ContentReadRepository interface {
	GetItem(ctx context.Context, itemID uint64) (ContentItem, error)
	ListItems(ctx context.Context, filter ContentItemFilter) ([]ContentItem, error)
	// GetMeta returns found=false when the field is absent.
	GetMeta(ctx context.Context, itemID uint64, key string) (value string, found bool, err error)
}

type ContentRepository interface {
	ContentReadRepository
	SaveItem(ctx context.Context, item ContentItem) (ContentItem, error)
	SetMeta(ctx context.Context, itemID uint64, key string, value string) error
	DeleteMeta(ctx context.Context, itemID uint64, key string) error
	// CompareAndSwapMeta writes next only if the stored value still equals prev.
	// A nil prev means the field must be absent. swapped=false reports a lost race.
	CompareAndSwapMeta(ctx context.Context, itemID uint64, key string, prev *string, next string) (swapped bool, err error)
}
