package ports

import "context"

// OptionRepository stores sitewide named values.
type OptionRepository interface {
	GetOption(ctx context.Context, name string) (value string, found bool, err error)
	SetOption(ctx context.Context, name string, value string) error
	DeleteOption(ctx context.Context, name string) error
}
