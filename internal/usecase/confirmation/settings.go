package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/settings"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

const settingsCacheKey = "option:" + domain.OptionSettings

// GetSettings returns the sitewide text. raw returns stored values only, with
// missing keys as empty strings; otherwise empty values fall back to the defaults
// for itemType.
func (s *Service) GetSettings(ctx context.Context, itemType string, raw bool) (settings.Text, error) {
	stored, err := s.storedSettings(ctx)
	if err != nil {
		return nil, err
	}
	if raw {
		return settings.Raw(stored), nil
	}
	return settings.Effective(stored, s.typeLabel(itemType)), nil
}

// SaveSettings sanitizes dirty and replaces the stored option with the result.
func (s *Service) SaveSettings(ctx context.Context, dirty map[string]string) (settings.Text, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if s.options == nil {
		return nil, errors.New("option repository is required")
	}

	clean := settings.Sanitize(dirty)
	encoded, err := json.Marshal(clean)
	if err != nil {
		return nil, errs.Wrap(err, "encode settings")
	}
	if err := s.options.SetOption(ctx, domain.OptionSettings, string(encoded)); err != nil {
		return nil, errs.Wrap(err, "save settings")
	}
	s.deleteCacheBestEffort(ctx, settingsCacheKey)
	return clean, nil
}

// SettingsAdmin backs the settings form. Only administrators may see it.
func (s *Service) SettingsAdmin(ctx context.Context, viewer ports.Viewer) (SettingsAdminView, error) {
	if err := s.check(ctx); err != nil {
		return SettingsAdminView{}, err
	}
	if s.access == nil || !s.access.CanManageSettings(viewer) {
		return SettingsAdminView{}, domain.ErrPermissionDenied
	}

	values, err := s.GetSettings(ctx, "", true)
	if err != nil {
		return SettingsAdminView{}, err
	}
	token, err := s.IssueToken(ctx, domain.ActionSettings, viewer, 0)
	if err != nil {
		return SettingsAdminView{}, err
	}
	return SettingsAdminView{
		Keys:   settings.Keys(),
		Labels: settings.Labels,
		Values: values,
		Token:  token,
	}, nil
}

// SubmitSettings applies a settings form post from viewer.
func (s *Service) SubmitSettings(ctx context.Context, viewer ports.Viewer, form SettingsForm) domain.Outcome {
	outcome, err := s.submitSettings(ctx, viewer, form)
	s.recordOutcome(ctx, string(domain.ActionSettings), viewer, ActionResult{Outcome: outcome, Err: err})
	return outcome
}

func (s *Service) submitSettings(ctx context.Context, viewer ports.Viewer, form SettingsForm) (domain.Outcome, error) {
	if err := s.check(ctx); err != nil {
		return domain.OutcomeFailed, err
	}
	if s.access == nil || !s.access.CanManageSettings(viewer) {
		return domain.OutcomeRejectedForbidden, domain.ErrPermissionDenied
	}

	ok, err := s.verifyToken(ctx, domain.ActionSettings, form.Token, viewer.UserID, 0)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	if !ok {
		return domain.OutcomeRejectedBadToken, domain.ErrBadToken
	}

	if _, err := s.SaveSettings(ctx, form.Values); err != nil {
		return domain.OutcomeFailed, err
	}
	return domain.OutcomeApplied, nil
}

func (s *Service) storedSettings(ctx context.Context) (settings.Text, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if s.options == nil {
		return nil, errors.New("option repository is required")
	}

	if s.cache != nil {
		if cached, found, err := s.cache.Get(ctx, settingsCacheKey); err == nil && found {
			return decodeSettings(ctx, cached), nil
		}
	}

	value, found, err := s.options.GetOption(ctx, domain.OptionSettings)
	if err != nil {
		return nil, errs.Wrap(err, "read settings")
	}
	if !found {
		value = "{}"
	}
	s.setCacheBestEffort(ctx, settingsCacheKey, value)
	return decodeSettings(ctx, value), nil
}

// decodeSettings keeps string values only. A corrupt option reads as empty.
func decodeSettings(ctx context.Context, value string) settings.Text {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		logging.Warn(ctx, "ignore corrupt settings option", slog.Any("err", errs.Loggable(err)))
		return settings.Text{}
	}

	out := make(settings.Text, len(decoded))
	for key, v := range decoded {
		if str, ok := v.(string); ok {
			out[key] = str
		}
	}
	return out
}
