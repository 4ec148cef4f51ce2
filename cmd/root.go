/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "readconfirm",
	Short:        "Confirm-as-read service for published content",
	Long:         "Readers confirm they have read an item; editors see who has. Cobra + Viper + GORM(SQLite no-cgo).",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		ctx := logging.WithLogger(cmd.Context(), logger)
		cmd.SetContext(logging.WithAttrs(ctx, slog.String("app", "readconfirm")))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithAttrs(ctx, slog.String("app", "readconfirm"))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: ./configs/config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}
