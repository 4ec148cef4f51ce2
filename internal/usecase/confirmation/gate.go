package confirmation

import (
	"context"
	"errors"
	"strings"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/eligibility"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

// IsAllowed decides whether the feature applies to itemID for viewer.
func (s *Service) IsAllowed(ctx context.Context, viewer ports.Viewer, itemID uint64) (eligibility.Decision, error) {
	if err := s.check(ctx); err != nil {
		return eligibility.Decision{}, err
	}

	item, err := s.content.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ports.ErrItemNotFound) {
			return eligibility.Deny(eligibility.ReasonItemNotFound), nil
		}
		return eligibility.Decision{}, err
	}
	return s.decide(ctx, viewer, item)
}

// SupportsType reports whether the item type was configured for the feature.
func (s *Service) SupportsType(itemType string) bool {
	return s.supportedTypes.Supports(itemType)
}

func (s *Service) decide(ctx context.Context, viewer ports.Viewer, item ports.ContentItem) (eligibility.Decision, error) {
	enabled, err := s.IsEnabled(ctx, item.ItemID)
	if err != nil {
		return eligibility.Decision{}, err
	}

	return eligibility.Evaluate(eligibility.Conditions{
		TypeSupported: s.supportedTypes.Supports(item.Type),
		Authenticated: viewer.Authenticated(),
		CanRead:       s.access != nil && s.access.CanRead(viewer, item),
		Enabled:       enabled,
	}), nil
}

// IsEnabled reads the per-item flag. Absent means disabled.
func (s *Service) IsEnabled(ctx context.Context, itemID uint64) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	value, found, err := s.content.GetMeta(ctx, itemID, domain.MetaEnabled)
	if err != nil {
		return false, errs.Wrap(err, "read enabled flag")
	}
	if !found {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// SetEnabled stores the flag as "1" or removes it.
func (s *Service) SetEnabled(ctx context.Context, itemID uint64, enabled bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if enabled {
		if err := s.content.SetMeta(ctx, itemID, domain.MetaEnabled, "1"); err != nil {
			return errs.Wrap(err, "enable item")
		}
		return nil
	}
	if err := s.content.DeleteMeta(ctx, itemID, domain.MetaEnabled); err != nil {
		return errs.Wrap(err, "disable item")
	}
	return nil
}
