package httpserver

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/domain/settings"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

const settingsFieldPrefix = domain.OptionSettings + "["

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	page, err := s.svc.ViewItem(ctx, viewerFromContext(ctx), itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := s.views.renderMarkdown(page.Item.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := itemData{
		layoutData: s.views.layout(page.Item.Title),
		Page:       page,
		Body:       body,
	}
	if page.ShowWidget {
		data.ActionURL = page.Widget.ActionURL(r.URL.RequestURI())
	}
	s.writeHTML(w, r, data, s.views.item)
}

func (s *Server) handleItemAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	view, err := s.svc.ItemAdmin(ctx, viewerFromContext(ctx), itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeHTML(w, r, adminItemData{
		layoutData: s.views.layout("Confirm as read"),
		View:       view,
		Saved:      r.URL.Query().Get("saved") == "1",
	}, s.views.adminItem)
}

func (s *Server) handleItemAdminSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome := s.svc.SubmitItemSettings(ctx, viewerFromContext(ctx), confirmation.ItemSettingsForm{
		ItemID:  itemID,
		Enabled: r.PostForm.Get(domain.FieldEnabled) != "",
		Reset:   r.PostForm.Get(domain.FieldReset) != "",
		Token:   r.PostForm.Get(domain.FieldItemToken),
	})
	s.respondToForm(w, r, outcome, r.URL.Path)
}

func (s *Server) handleSettingsAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := s.svc.SettingsAdmin(ctx, viewerFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeHTML(w, r, adminSettingsData{
		layoutData: s.views.layout("Confirm as read settings"),
		View:       view,
		Saved:      r.URL.Query().Get("saved") == "1",
	}, s.views.adminSettings)
}

func (s *Server) handleSettingsAdminSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome := s.svc.SubmitSettings(ctx, viewerFromContext(ctx), confirmation.SettingsForm{
		Values: settingsFromForm(r.PostForm),
		Token:  r.PostForm.Get(domain.FieldSettingsToken),
	})
	s.respondToForm(w, r, outcome, r.URL.Path)
}

// respondToForm redirects back to the form after a save. Rejected posts get the
// matching status code.
func (s *Server) respondToForm(w http.ResponseWriter, r *http.Request, outcome domain.Outcome, formPath string) {
	switch outcome {
	case domain.OutcomeApplied, domain.OutcomeUnchanged:
		http.Redirect(w, r, formPath+"?saved=1", http.StatusSeeOther)
	case domain.OutcomeRejectedForbidden, domain.OutcomeRejectedBadToken:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case domain.OutcomeRejectedMissingItem:
		http.NotFound(w, r)
	case domain.OutcomeRejectedNotEligible:
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, data any, tmpl *template.Template) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render(w, tmpl, data); err != nil {
		logging.Error(r.Context(), "render page failed", slog.Any("err", errs.Loggable(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrItemNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrPermissionDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errs.IsAny(err, context.Canceled, context.DeadlineExceeded):
		logging.Warn(r.Context(), "request aborted", slog.Any("err", errs.Loggable(err)))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// settingsFromForm collects hm_confirm_as_read_settings[key] fields.
func settingsFromForm(form url.Values) map[string]string {
	values := make(map[string]string, len(settings.Keys()))
	for field, v := range form {
		if !strings.HasPrefix(field, settingsFieldPrefix) || !strings.HasSuffix(field, "]") || len(v) == 0 {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(field, settingsFieldPrefix), "]")
		values[key] = v[0]
	}
	return values
}
