package confirmation

import (
	"context"
	"errors"
	"strings"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/eligibility"
	"readconfirm/internal/domain/settings"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

const defaultMaxWriteRetries = 16

type Service struct {
	content ports.ContentRepository
	users   ports.UserRepository
	options ports.OptionRepository
	uow     ports.UnitOfWork
	access  ports.AccessPolicy
	tokens  ports.TokenIssuer
	cache   ports.Cache
	metrics ports.OutcomeRecorder

	supportedTypes  eligibility.TypeSet
	typeLabels      map[string]string
	maxWriteRetries uint64
}

type Dependencies struct {
	Content    ports.ContentRepository
	Users      ports.UserRepository
	Options    ports.OptionRepository
	UnitOfWork ports.UnitOfWork
	Access     ports.AccessPolicy
	Tokens     ports.TokenIssuer
	Cache      ports.Cache
	Metrics    ports.OutcomeRecorder
}

// Options is the startup configuration of the feature.
type Options struct {
	// PostTypes are the item types that carry the feature. Empty means post and page.
	PostTypes []string
	// TypeLabels maps an item type to the singular label used in default texts.
	TypeLabels map[string]string
	// MaxWriteRetries bounds compare-and-swap retries on a contended record.
	MaxWriteRetries int
}

// NewService wires the confirmation usecases. Cache and Metrics are optional.
func NewService(deps Dependencies, opts Options) *Service {
	postTypes := opts.PostTypes
	if len(postTypes) == 0 {
		postTypes = eligibility.DefaultTypes
	}

	labels := make(map[string]string, len(opts.TypeLabels))
	for itemType, label := range opts.TypeLabels {
		labels[strings.ToLower(strings.TrimSpace(itemType))] = strings.TrimSpace(label)
	}

	retries := uint64(defaultMaxWriteRetries)
	if opts.MaxWriteRetries > 0 {
		retries = uint64(opts.MaxWriteRetries)
	}

	return &Service{
		content:         deps.Content,
		users:           deps.Users,
		options:         deps.Options,
		uow:             deps.UnitOfWork,
		access:          deps.Access,
		tokens:          deps.Tokens,
		cache:           deps.Cache,
		metrics:         deps.Metrics,
		supportedTypes:  eligibility.NewTypeSet(postTypes),
		typeLabels:      labels,
		maxWriteRetries: retries,
	}
}

// UserSummary is a user as shown in confirmation reports.
type UserSummary struct {
	UserID      uint64
	Login       string
	DisplayName string
}

// Report lists who has and has not confirmed an item.
type Report struct {
	ItemID      uint64
	Enabled     bool
	Confirmed   []UserSummary
	Unconfirmed []UserSummary
}

// Widget is the front-end confirmation block for one viewer.
type Widget struct {
	ItemID     uint64
	Text       settings.Text
	Confirmed  bool
	Action     domain.Action
	Token      string
	ShowReport bool
	Report     Report
}

// ItemPage is everything needed to render one item for a viewer.
type ItemPage struct {
	Item       ports.ContentItem
	ShowWidget bool
	Widget     Widget
	CanEdit    bool
}

// ItemAdminView backs the per-item settings form.
type ItemAdminView struct {
	Item          ports.ContentItem
	TypeSupported bool
	Enabled       bool
	Token         string
	Report        Report
}

type ItemSettingsForm struct {
	ItemID  uint64
	Enabled bool
	Reset   bool
	Token   string
}

// SettingsAdminView backs the sitewide settings form.
type SettingsAdminView struct {
	Keys   []string
	Labels map[string]string
	Values settings.Text
	Token  string
}

type SettingsForm struct {
	Values map[string]string
	Token  string
}

type CreateItemInput struct {
	ItemID   uint64
	Type     string
	Title    string
	Body     string
	AuthorID uint64
	Status   string
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.content == nil {
		return errors.New("content repository is required")
	}
	return nil
}

func (s *Service) typeLabel(itemType string) string {
	key := strings.ToLower(strings.TrimSpace(itemType))
	if label := s.typeLabels[key]; label != "" {
		return label
	}
	if key == "" {
		return "post"
	}
	return key
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}
