package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
	"readconfirm/internal/usecase/confirmation"
)

var confirmationsCmd = &cobra.Command{
	Use:   "confirmations",
	Short: "Inspect and edit who has confirmed reading an item",
}

func newConfirmationsListCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show confirmed and unconfirmed users of an item",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("item")
			if _, err := svc.GetItem(ctx, itemID); err != nil {
				return errs.Wrapf(err, "get item %d", itemID)
			}
			report, err := svc.ConfirmationReport(ctx, itemID)
			if err != nil {
				logging.Error(ctx, "build confirmation report failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "build confirmation report")
			}

			out := cmd.OutOrStdout()
			if err := writeSection(out, fmt.Sprintf("item %d enabled=%t", report.ItemID, report.Enabled)); err != nil {
				return err
			}
			rows := make([][]string, 0, len(report.Confirmed)+len(report.Unconfirmed))
			for _, u := range report.Confirmed {
				rows = append(rows, userRow(u, "confirmed"))
			}
			for _, u := range report.Unconfirmed {
				rows = append(rows, userRow(u, "unconfirmed"))
			}
			if len(rows) == 0 {
				return writeDim(out, "no users")
			}
			return renderTable(out, []string{"user", "login", "name", "state"}, rows)
		}),
	}

	cmd.Flags().Uint64("item", 0, "Item id")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func userRow(u confirmation.UserSummary, state string) []string {
	return []string{
		strconv.FormatUint(u.UserID, 10),
		orDash(u.Login),
		orDash(u.DisplayName),
		state,
	}
}

// newConfirmationsMutateCmd builds confirm and unconfirm. Both write the record
// directly and skip the eligibility gate.
func newConfirmationsMutateCmd(svc *confirmation.Service, action domain.Action) *cobra.Command {
	use, short := "confirm", "Record that a user has read an item"
	if action == domain.ActionUnconfirm {
		use, short = "unconfirm", "Remove a user's read confirmation from an item"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("item")
			userID, _ := cmd.Flags().GetUint64("user")

			mutate := svc.Confirm
			if action == domain.ActionUnconfirm {
				mutate = svc.Unconfirm
			}
			changed, err := mutate(ctx, domain.UserID(userID), itemID)
			if err != nil {
				logging.Error(ctx, "update confirmation failed",
					slog.String("action", use),
					slog.Any("err", errs.Loggable(err)),
				)
				return errs.Wrapf(err, "%s user %d on item %d", use, userID, itemID)
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: item=%d user=%d changed=%t\n", use, itemID, userID, changed); err != nil {
				return errs.Wrap(err, "write confirmation output")
			}
			return nil
		}),
	}

	cmd.Flags().Uint64("item", 0, "Item id")
	cmd.Flags().Uint64("user", 0, "User id")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newConfirmationsResetCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every confirmation of an item",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("item")
			if err := svc.Reset(ctx, itemID); err != nil {
				logging.Error(ctx, "reset confirmations failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrapf(err, "reset item %d", itemID)
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "confirmations reset: item=%d\n", itemID); err != nil {
				return errs.Wrap(err, "write reset output")
			}
			return nil
		}),
	}

	cmd.Flags().Uint64("item", 0, "Item id")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func init() {
	rootCmd.AddCommand(confirmationsCmd)
	confirmationsCmd.AddCommand(
		newConfirmationsListCmd(nil),
		newConfirmationsMutateCmd(nil, domain.ActionConfirm),
		newConfirmationsMutateCmd(nil, domain.ActionUnconfirm),
		newConfirmationsResetCmd(nil),
	)
}
