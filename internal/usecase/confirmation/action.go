package confirmation

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/eligibility"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

// ActionRequest is one confirm or unconfirm request, taken off the wire by the caller.
type ActionRequest struct {
	Action domain.Action
	Token  string
	// ItemID is the raw item id parameter.
	ItemID string
	Viewer ports.Viewer
	// Referer and Host decide where an accepted request is sent back to.
	Referer string
	Host    string
}

// ActionResult reports what HandleAction did. Redirect is set only when the outcome
// was accepted.
type ActionResult struct {
	Outcome  domain.Outcome
	ItemID   uint64
	Reason   eligibility.Reason
	Redirect string
	Err      error
}

// HandleAction validates and applies a confirm or unconfirm request. Rejections
// leave storage untouched and carry no redirect.
func (s *Service) HandleAction(ctx context.Context, req ActionRequest) ActionResult {
	result := s.handleAction(ctx, req)
	s.recordOutcome(ctx, string(req.Action), req.Viewer, result)
	return result
}

func (s *Service) handleAction(ctx context.Context, req ActionRequest) ActionResult {
	if err := s.check(ctx); err != nil {
		return ActionResult{Outcome: domain.OutcomeFailed, Err: err}
	}
	if req.Action != domain.ActionConfirm && req.Action != domain.ActionUnconfirm {
		return ActionResult{Outcome: domain.OutcomeFailed, Err: domain.ErrUnknownAction}
	}

	itemID, err := domain.ParseItemID(req.ItemID)
	if err != nil {
		return ActionResult{Outcome: domain.OutcomeRejectedMissingItem, Err: err}
	}

	if ok, err := s.verifyToken(ctx, req.Action, req.Token, req.Viewer.UserID, itemID); err != nil {
		return ActionResult{Outcome: domain.OutcomeFailed, ItemID: itemID, Err: err}
	} else if !ok {
		return ActionResult{Outcome: domain.OutcomeRejectedBadToken, ItemID: itemID, Err: domain.ErrBadToken}
	}

	decision, err := s.IsAllowed(ctx, req.Viewer, itemID)
	if err != nil {
		return ActionResult{Outcome: domain.OutcomeFailed, ItemID: itemID, Err: err}
	}
	if decision.Reason == eligibility.ReasonItemNotFound {
		return ActionResult{Outcome: domain.OutcomeRejectedMissingItem, ItemID: itemID, Reason: decision.Reason}
	}
	if !decision.Allowed {
		return ActionResult{Outcome: domain.OutcomeRejectedNotEligible, ItemID: itemID, Reason: decision.Reason}
	}

	userID := domain.UserID(req.Viewer.UserID)
	var changed bool
	if req.Action == domain.ActionConfirm {
		changed, err = s.Confirm(ctx, userID, itemID)
	} else {
		changed, err = s.Unconfirm(ctx, userID, itemID)
	}
	if err != nil {
		return ActionResult{Outcome: domain.OutcomeFailed, ItemID: itemID, Err: err}
	}

	outcome := domain.OutcomeUnchanged
	if changed {
		outcome = domain.OutcomeApplied
	}
	return ActionResult{
		Outcome:  outcome,
		ItemID:   itemID,
		Redirect: RedirectTarget(req.Referer, req.Host, itemID, req.Action.Status()),
	}
}

// IssueToken mints a token for action bound to viewer and item.
func (s *Service) IssueToken(ctx context.Context, action domain.Action, viewer ports.Viewer, itemID uint64) (string, error) {
	if s.tokens == nil {
		return "", errors.New("token issuer is required")
	}
	token, err := s.tokens.Issue(ctx, string(action), viewer.UserID, itemID)
	if err != nil {
		return "", errs.Wrapf(err, "issue %s token", action)
	}
	return token, nil
}

func (s *Service) verifyToken(ctx context.Context, action domain.Action, token string, userID uint64, itemID uint64) (bool, error) {
	if s.tokens == nil {
		return false, errors.New("token issuer is required")
	}
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	ok, err := s.tokens.Verify(ctx, string(action), token, userID, itemID)
	if err != nil {
		return false, errs.Wrapf(err, "verify %s token", action)
	}
	return ok, nil
}

func (s *Service) recordOutcome(ctx context.Context, action string, viewer ports.Viewer, result ActionResult) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(action, string(result.Outcome))
	}

	attrs := []slog.Attr{
		slog.String("action", action),
		slog.String("outcome", string(result.Outcome)),
		slog.Uint64("item_id", result.ItemID),
		slog.Uint64("user_id", viewer.UserID),
	}
	if result.Reason != eligibility.ReasonNone {
		attrs = append(attrs, slog.String("reason", string(result.Reason)))
	}

	switch {
	case result.Outcome == domain.OutcomeFailed:
		attrs = append(attrs, slog.Any("err", errs.Loggable(result.Err)))
		logging.Error(ctx, "confirmation action failed", attrs...)
	case result.Outcome.Accepted():
		logging.Info(ctx, "confirmation action handled", attrs...)
	default:
		logging.Warn(ctx, "confirmation action rejected", attrs...)
	}
}

// Permalink is the canonical page of an item.
func Permalink(itemID uint64) string {
	return "/items/" + strconv.FormatUint(itemID, 10)
}

// RedirectTarget returns the referring page with token parameters removed and the
// status indicator set. Referers on another host fall back to the item permalink.
func RedirectTarget(referer string, host string, itemID uint64, status string) string {
	target := sameSiteReferer(referer, host)
	if target == nil {
		target = &url.URL{Path: Permalink(itemID)}
	}

	query := target.Query()
	query.Del(domain.ParamConfirmToken)
	query.Del(domain.ParamUnconfirmToken)
	query.Del(domain.ParamItemID)
	query.Del(domain.ParamStatus)
	if status != "" {
		query.Set(domain.ParamStatus, status)
	}
	target.RawQuery = query.Encode()
	target.Fragment = ""
	return target.String()
}

func sameSiteReferer(referer string, host string) *url.URL {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return nil
	}
	u, err := url.Parse(referer)
	if err != nil {
		return nil
	}
	if u.Host == "" {
		if u.Scheme != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
			return nil
		}
		return &url.URL{Path: u.Path, RawQuery: u.RawQuery}
	}
	if host == "" || !strings.EqualFold(u.Host, host) {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}
