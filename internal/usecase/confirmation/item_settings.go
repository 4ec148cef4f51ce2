package confirmation

import (
	"context"
	"errors"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

// ItemAdmin backs the per-item settings form. Viewer needs edit permission.
func (s *Service) ItemAdmin(ctx context.Context, viewer ports.Viewer, itemID uint64) (ItemAdminView, error) {
	if err := s.check(ctx); err != nil {
		return ItemAdminView{}, err
	}

	item, err := s.content.GetItem(ctx, itemID)
	if err != nil {
		return ItemAdminView{}, err
	}
	if s.access == nil || !s.access.CanEdit(viewer, item) {
		return ItemAdminView{}, domain.ErrPermissionDenied
	}

	view := ItemAdminView{
		Item:          item,
		TypeSupported: s.supportedTypes.Supports(item.Type),
	}
	if !view.TypeSupported {
		return view, nil
	}

	report, err := s.ConfirmationReport(ctx, itemID)
	if err != nil {
		return ItemAdminView{}, err
	}
	token, err := s.IssueToken(ctx, domain.ActionItemSettings, viewer, itemID)
	if err != nil {
		return ItemAdminView{}, err
	}
	view.Enabled = report.Enabled
	view.Report = report
	view.Token = token
	return view, nil
}

// SubmitItemSettings applies the per-item form: the enabled flag, and a reset of the
// confirmation record when requested. Both writes share one transaction.
func (s *Service) SubmitItemSettings(ctx context.Context, viewer ports.Viewer, form ItemSettingsForm) domain.Outcome {
	outcome, err := s.submitItemSettings(ctx, viewer, form)
	s.recordOutcome(ctx, string(domain.ActionItemSettings), viewer, ActionResult{
		Outcome: outcome,
		ItemID:  form.ItemID,
		Err:     err,
	})
	return outcome
}

func (s *Service) submitItemSettings(ctx context.Context, viewer ports.Viewer, form ItemSettingsForm) (domain.Outcome, error) {
	if err := s.check(ctx); err != nil {
		return domain.OutcomeFailed, err
	}
	if form.ItemID == 0 {
		return domain.OutcomeRejectedMissingItem, domain.ErrItemIDRequired
	}

	ok, err := s.verifyToken(ctx, domain.ActionItemSettings, form.Token, viewer.UserID, form.ItemID)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if !ok {
		return domain.OutcomeRejectedBadToken, domain.ErrBadToken
	}

	item, err := s.content.GetItem(ctx, form.ItemID)
	if err != nil {
		if errors.Is(err, ports.ErrItemNotFound) {
			return domain.OutcomeRejectedMissingItem, err
		}
		return domain.OutcomeFailed, errs.Wrap(err, "get item")
	}
	if s.access == nil || !s.access.CanEdit(viewer, item) {
		return domain.OutcomeRejectedForbidden, domain.ErrPermissionDenied
	}
	if !s.supportedTypes.Supports(item.Type) {
		return domain.OutcomeRejectedNotEligible, nil
	}

	apply := func(txCtx context.Context) error {
		if err := s.SetEnabled(txCtx, form.ItemID, form.Enabled); err != nil {
			return err
		}
		if form.Reset {
			return s.Reset(txCtx, form.ItemID)
		}
		return nil
	}
	if s.uow != nil {
		err = s.uow.WithTx(ctx, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return domain.OutcomeFailed, err
	}
	return domain.OutcomeApplied, nil
}
