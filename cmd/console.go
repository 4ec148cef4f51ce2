package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap"
	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmconsole"
	"readconfirm/internal/usecase/confirmation"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the terminal console for item flags and confirmation reports",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *confirmation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		itemType, _ := cmd.Flags().GetString("type")
		enabledOnly, _ := cmd.Flags().GetBool("enabled-only")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := confirmconsole.NewConsoleModel(ctx, svc, confirmconsole.Options{
			TypeFilter:      itemType,
			EnabledOnly:     enabledOnly,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("type", "", "Only list items of this type")
	consoleCmd.Flags().Bool("enabled-only", false, "Only list items with confirmations enabled")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
