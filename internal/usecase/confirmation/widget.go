package confirmation

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

// ConfirmationReport splits registered users into those who confirmed itemID and
// those who did not. Confirmed ids without a user account are skipped.
func (s *Service) ConfirmationReport(ctx context.Context, itemID uint64) (Report, error) {
	if err := s.check(ctx); err != nil {
		return Report{}, err
	}
	if s.users == nil {
		return Report{}, errors.New("user repository is required")
	}

	ids, err := s.GetConfirmedUsers(ctx, itemID)
	if err != nil {
		return Report{}, err
	}
	enabled, err := s.IsEnabled(ctx, itemID)
	if err != nil {
		return Report{}, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return Report{}, errs.Wrap(err, "list users")
	}

	byID := make(map[uint64]ports.User, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}

	report := Report{
		ItemID:      itemID,
		Enabled:     enabled,
		Confirmed:   make([]UserSummary, 0, len(ids)),
		Unconfirmed: make([]UserSummary, 0, len(users)),
	}
	for _, id := range ids {
		if u, ok := byID[uint64(id)]; ok {
			report.Confirmed = append(report.Confirmed, summarize(u))
		}
	}
	for _, u := range users {
		if !domain.Contains(ids, domain.UserID(u.UserID)) {
			report.Unconfirmed = append(report.Unconfirmed, summarize(u))
		}
	}
	return report, nil
}

// BuildWidget returns the widget for viewer on itemID. ok is false when the gate
// denies the item, in which case nothing is shown.
func (s *Service) BuildWidget(ctx context.Context, viewer ports.Viewer, itemID uint64) (Widget, bool, error) {
	if err := s.check(ctx); err != nil {
		return Widget{}, false, err
	}

	item, err := s.content.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ports.ErrItemNotFound) {
			return Widget{}, false, nil
		}
		return Widget{}, false, errs.Wrap(err, "get item")
	}
	return s.buildWidget(ctx, viewer, item)
}

func (s *Service) buildWidget(ctx context.Context, viewer ports.Viewer, item ports.ContentItem) (Widget, bool, error) {
	decision, err := s.decide(ctx, viewer, item)
	if err != nil {
		return Widget{}, false, err
	}
	if !decision.Allowed {
		return Widget{}, false, nil
	}

	confirmed, err := s.IsConfirmed(ctx, domain.UserID(viewer.UserID), item.ItemID)
	if err != nil {
		return Widget{}, false, err
	}
	text, err := s.GetSettings(ctx, item.Type, false)
	if err != nil {
		return Widget{}, false, err
	}

	action := domain.ActionConfirm
	if confirmed {
		action = domain.ActionUnconfirm
	}
	token, err := s.IssueToken(ctx, action, viewer, item.ItemID)
	if err != nil {
		return Widget{}, false, err
	}

	widget := Widget{
		ItemID:    item.ItemID,
		Text:      text,
		Confirmed: confirmed,
		Action:    action,
		Token:     token,
	}
	if s.access != nil && s.access.CanEdit(viewer, item) {
		report, err := s.ConfirmationReport(ctx, item.ItemID)
		if err != nil {
			return Widget{}, false, err
		}
		widget.ShowReport = true
		widget.Report = report
	}
	return widget, true, nil
}

// ActionURL is the toggle link for the widget, relative to pageURL.
func (w Widget) ActionURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{Path: Permalink(w.ItemID)}
	}
	query := u.Query()
	query.Del(domain.ParamConfirmToken)
	query.Del(domain.ParamUnconfirmToken)
	query.Del(domain.ParamStatus)
	query.Set(w.Action.TokenParam(), w.Token)
	query.Set(domain.ParamItemID, strconv.FormatUint(w.ItemID, 10))
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String()
}

// ViewItem loads an item for display along with the widget when it applies.
func (s *Service) ViewItem(ctx context.Context, viewer ports.Viewer, itemID uint64) (ItemPage, error) {
	if err := s.check(ctx); err != nil {
		return ItemPage{}, err
	}

	item, err := s.content.GetItem(ctx, itemID)
	if err != nil {
		return ItemPage{}, err
	}
	if s.access != nil && !s.access.CanRead(viewer, item) {
		return ItemPage{}, domain.ErrPermissionDenied
	}

	widget, show, err := s.buildWidget(ctx, viewer, item)
	if err != nil {
		return ItemPage{}, err
	}
	return ItemPage{
		Item:       item,
		ShowWidget: show,
		Widget:     widget,
		CanEdit:    s.access != nil && s.access.CanEdit(viewer, item),
	}, nil
}

func summarize(u ports.User) UserSummary {
	name := u.DisplayName
	if name == "" {
		name = u.Login
	}
	return UserSummary{
		UserID:      u.UserID,
		Login:       u.Login,
		DisplayName: name,
	}
}
