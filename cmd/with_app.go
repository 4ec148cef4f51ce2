package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"readconfirm/internal/bootstrap"
	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmation"
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc *confirmation.Service) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		var svc *confirmation.Service
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "ensure schema")
		}

		if err := run(cmd, app, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

// serviceRunE binds run to svc when one is given and to the fx-built service
// otherwise.
func serviceRunE(
	svc *confirmation.Service,
	run func(cmd *cobra.Command, args []string, svc *confirmation.Service) error,
) func(cmd *cobra.Command, args []string) error {
	if svc != nil {
		return func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, svc)
		}
	}
	return func(cmd *cobra.Command, args []string) error {
		return withApp(func(cmd *cobra.Command, _ *bootstrap.App, appSvc *confirmation.Service) error {
			if appSvc == nil {
				return errors.New("confirmation service is not configured")
			}
			return run(cmd, args, appSvc)
		})(cmd, args)
	}
}
