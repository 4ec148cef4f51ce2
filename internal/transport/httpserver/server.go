package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/infrastructure/metrics"
	"readconfirm/internal/usecase/confirmation"
)

type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// UserHeader names the trusted header carrying the signed-in user id.
	UserHeader string
}

type Server struct {
	svc     *confirmation.Service
	metrics *metrics.Registry
	views   *views
	opts    Options
	handler http.Handler
}

func New(svc *confirmation.Service, reg *metrics.Registry, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("confirmation service is required")
	}
	if reg == nil {
		return nil, errors.New("metrics registry is required")
	}
	if opts.UserHeader == "" {
		opts.UserHeader = "X-Remote-User"
	}

	v, err := newViews()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		metrics: reg,
		views:   v,
		opts:    opts,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.resolveViewer)
		r.Use(s.interceptActions)

		r.Get("/items/{id}", s.handleItem)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/items/{id}", s.handleItemAdmin)
			r.Post("/items/{id}", s.handleItemAdminSubmit)
			r.Get("/settings", s.handleSettingsAdmin)
			r.Post("/settings", s.handleSettingsAdminSubmit)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "transport.http"))
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return logCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "http server listening", slog.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errs.Wrap(err, "listen and serve")
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(logCtx), timeout)
	defer cancel()

	logging.Info(logCtx, "http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	return nil
}
