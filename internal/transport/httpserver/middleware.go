package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

const headerRequestID = "X-Request-Id"

type viewerKey struct{}

func viewerFromContext(ctx context.Context) ports.Viewer {
	viewer, _ := ctx.Value(viewerKey{}).(ports.Viewer)
	return viewer
}

// requestContext tags the request context with a request id.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)

		ctx := logging.WithAttrs(r.Context(), slog.String("component", "transport.http"))
		ctx = logging.WithRequest(ctx, requestID, 0)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe logs each request and records its latency under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(started)
		s.metrics.ObserveRequest(r.Method, route, status, elapsed)

		logging.Debug(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
		)
	})
}

// resolveViewer reads the signed-in user from the trusted header. Anything that
// does not name a known user is an anonymous visitor.
func (s *Server) resolveViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var viewer ports.Viewer

		if raw := strings.TrimSpace(r.Header.Get(s.opts.UserHeader)); raw != "" {
			if userID, err := strconv.ParseUint(raw, 10, 64); err == nil {
				resolved, err := s.svc.ResolveViewer(ctx, userID)
				if err != nil {
					logging.Error(ctx, "resolve viewer failed", slog.Any("err", errs.Loggable(err)))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				viewer = resolved
			}
		}

		ctx = context.WithValue(ctx, viewerKey{}, viewer)
		ctx = logging.WithRequest(ctx, "", viewer.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// interceptActions applies confirm and unconfirm links on any page. An accepted
// request redirects back to the referring page; anything else renders the page as
// if no action had been requested.
func (s *Server) interceptActions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		action, token, ok := actionFromQuery(query)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		result := s.svc.HandleAction(r.Context(), confirmation.ActionRequest{
			Action:  action,
			Token:   token,
			ItemID:  query.Get(domain.ParamItemID),
			Viewer:  viewerFromContext(r.Context()),
			Referer: r.Referer(),
			Host:    r.Host,
		})
		if result.Outcome.Accepted() {
			http.Redirect(w, r, result.Redirect, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actionFromQuery(query map[string][]string) (domain.Action, string, bool) {
	for _, action := range []domain.Action{domain.ActionConfirm, domain.ActionUnconfirm} {
		values, ok := query[action.TokenParam()]
		if ok && len(values) > 0 {
			return action, values[0], true
		}
	}
	return "", "", false
}
