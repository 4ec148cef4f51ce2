package confirmation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
)

// GetConfirmedUsers decodes the stored record. A missing or corrupt record is empty.
func (s *Service) GetConfirmedUsers(ctx context.Context, itemID uint64) ([]domain.UserID, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	raw, found, err := s.content.GetMeta(ctx, itemID, domain.MetaConfirmedUsers)
	if err != nil {
		return nil, errs.Wrap(err, "read confirmed users")
	}
	if !found {
		return []domain.UserID{}, nil
	}
	return domain.Decode(raw), nil
}

// IsConfirmed compares ids as integers, the same way Confirm and Unconfirm do.
func (s *Service) IsConfirmed(ctx context.Context, userID domain.UserID, itemID uint64) (bool, error) {
	ids, err := s.GetConfirmedUsers(ctx, itemID)
	if err != nil {
		return false, err
	}
	return domain.Contains(ids, userID), nil
}

// Confirm adds userID to the item's record. changed is false when already present.
func (s *Service) Confirm(ctx context.Context, userID domain.UserID, itemID uint64) (bool, error) {
	if userID == 0 {
		return false, domain.ErrInvalidUserID
	}
	return s.mutateConfirmedUsers(ctx, itemID, func(ids []domain.UserID) ([]domain.UserID, bool) {
		return domain.Add(ids, userID)
	})
}

// Unconfirm removes userID from the item's record. changed is false when absent.
func (s *Service) Unconfirm(ctx context.Context, userID domain.UserID, itemID uint64) (bool, error) {
	if userID == 0 {
		return false, domain.ErrInvalidUserID
	}
	return s.mutateConfirmedUsers(ctx, itemID, func(ids []domain.UserID) ([]domain.UserID, bool) {
		return domain.Remove(ids, userID)
	})
}

// Reset deletes the record, returning the item to the empty set.
func (s *Service) Reset(ctx context.Context, itemID uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.content.DeleteMeta(ctx, itemID, domain.MetaConfirmedUsers); err != nil {
		return errs.Wrap(err, "reset confirmed users")
	}
	return nil
}

// mutateConfirmedUsers applies fn to the current set and writes the result with a
// compare-and-swap on the serialized value, retrying when another writer got there
// first.
func (s *Service) mutateConfirmedUsers(ctx context.Context, itemID uint64, fn func([]domain.UserID) ([]domain.UserID, bool)) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	attempt := func() (bool, error) {
		raw, found, err := s.content.GetMeta(ctx, itemID, domain.MetaConfirmedUsers)
		if err != nil {
			return false, backoff.Permanent(errs.Wrap(err, "read confirmed users"))
		}

		next, changed := fn(domain.Decode(raw))
		if !changed {
			return false, nil
		}

		var prev *string
		if found {
			prev = &raw
		}
		swapped, err := s.content.CompareAndSwapMeta(ctx, itemID, domain.MetaConfirmedUsers, prev, domain.Encode(next))
		if err != nil {
			return false, backoff.Permanent(errs.Wrap(err, "write confirmed users"))
		}
		if !swapped {
			return false, domain.ErrWriteConflict
		}
		return true, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newWriteBackOff(), s.maxWriteRetries), ctx)
	return backoff.RetryWithData(attempt, policy)
}

func newWriteBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}
