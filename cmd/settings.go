package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/domain/settings"
	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmation"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and edit the sitewide widget text",
}

func newSettingsShowCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the widget text as YAML",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			raw, _ := cmd.Flags().GetBool("raw")
			itemType, _ := cmd.Flags().GetString("type")

			text, err := svc.GetSettings(ctx, itemType, raw)
			if err != nil {
				logging.Error(ctx, "read settings failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "read settings")
			}
			return writeSettingsYAML(cmd, text)
		}),
	}

	cmd.Flags().Bool("raw", false, "Print stored values only, without defaults")
	cmd.Flags().String("type", "post", "Item type the defaults are worded for")

	return cmd
}

func newSettingsSetCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update widget text keys, keeping the others",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			updates, _ := cmd.Flags().GetStringToString("set")
			unset, _ := cmd.Flags().GetStringSlice("unset")

			current, err := svc.GetSettings(ctx, "", true)
			if err != nil {
				return errs.Wrap(err, "read settings")
			}
			merged := mergeSettings(current, updates, unset)
			for key := range updates {
				if _, ok := settings.Labels[key]; !ok {
					logging.Warn(ctx, "unknown settings key dropped", slog.String("key", key))
				}
			}

			saved, err := svc.SaveSettings(ctx, merged)
			if err != nil {
				logging.Error(ctx, "save settings failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "save settings")
			}
			logging.Info(ctx, "settings saved", slog.Int("keys", len(saved)))
			return writeSettingsYAML(cmd, saved)
		}),
	}

	cmd.Flags().StringToString("set", nil, "key=value pairs to store, for example button_text=Got it")
	cmd.Flags().StringSlice("unset", nil, "Keys to clear so they fall back to the defaults")

	return cmd
}

// mergeSettings overlays updates on the stored values and blanks unset keys.
func mergeSettings(current settings.Text, updates map[string]string, unset []string) map[string]string {
	merged := make(map[string]string, len(current)+len(updates))
	for key, value := range current {
		if value != "" {
			merged[key] = value
		}
	}
	for key, value := range updates {
		merged[key] = value
	}
	for _, key := range unset {
		merged[key] = ""
	}
	return merged
}

func writeSettingsYAML(cmd *cobra.Command, text settings.Text) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(map[string]string(text)); err != nil {
		return errs.Wrap(err, "encode settings yaml")
	}
	if err := enc.Close(); err != nil {
		return errs.Wrap(err, "flush settings yaml")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(
		newSettingsShowCmd(nil),
		newSettingsSetCmd(nil),
	)
}
