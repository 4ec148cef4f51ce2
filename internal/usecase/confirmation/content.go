package confirmation

import (
	"context"
	"errors"
	"strings"

	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (ports.ContentItem, error) {
	if err := s.check(ctx); err != nil {
		return ports.ContentItem{}, err
	}
	itemType := strings.ToLower(strings.TrimSpace(input.Type))
	if itemType == "" {
		return ports.ContentItem{}, errors.New("item type is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ports.ContentItem{}, errors.New("item title is required")
	}

	item, err := s.content.SaveItem(ctx, ports.ContentItem{
		ItemID:   input.ItemID,
		Type:     itemType,
		Title:    title,
		Body:     input.Body,
		AuthorID: input.AuthorID,
		Status:   strings.ToLower(strings.TrimSpace(input.Status)),
	})
	if err != nil {
		return ports.ContentItem{}, errs.Wrap(err, "save item")
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, itemID uint64) (ports.ContentItem, error) {
	if err := s.check(ctx); err != nil {
		return ports.ContentItem{}, err
	}
	return s.content.GetItem(ctx, itemID)
}

func (s *Service) ListItems(ctx context.Context, filter ports.ContentItemFilter) ([]ports.ContentItem, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	items, err := s.content.ListItems(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list items")
	}
	return items, nil
}

func (s *Service) SaveUser(ctx context.Context, user ports.User) (ports.User, error) {
	if err := s.check(ctx); err != nil {
		return ports.User{}, err
	}
	if s.users == nil {
		return ports.User{}, errors.New("user repository is required")
	}
	saved, err := s.users.SaveUser(ctx, user)
	if err != nil {
		return ports.User{}, errs.Wrap(err, "save user")
	}
	return saved, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]ports.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if s.users == nil {
		return nil, errors.New("user repository is required")
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list users")
	}
	return users, nil
}

// ResolveViewer maps a user id to a viewer. Unknown or zero ids are anonymous.
func (s *Service) ResolveViewer(ctx context.Context, userID uint64) (ports.Viewer, error) {
	if userID == 0 || s.users == nil {
		return ports.Viewer{}, nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return ports.Viewer{}, nil
		}
		return ports.Viewer{}, errs.Wrap(err, "resolve viewer")
	}
	return ports.ViewerFromUser(user), nil
}
