package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap"
	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve item pages, the confirmation widget and the admin forms over HTTP",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *confirmation.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		logging.Info(ctx, "starting server",
			slog.String("addr", app.Config.HTTP.Addr),
			slog.String("cache_backend", app.Config.Cache.Backend),
		)
		if err := app.HTTP.Run(ctx); err != nil {
			logging.Error(ctx, "server stopped with error", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run http server")
		}
		logging.Info(ctx, "server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
