package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage content items and their confirmation flag",
}

func newItemCreateCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or replace a content item",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("id")
			itemType, _ := cmd.Flags().GetString("type")
			title, _ := cmd.Flags().GetString("title")
			body, _ := cmd.Flags().GetString("body")
			bodyFile, _ := cmd.Flags().GetString("body-file")
			authorID, _ := cmd.Flags().GetUint64("author")
			status, _ := cmd.Flags().GetString("status")
			enabled, _ := cmd.Flags().GetBool("enabled")

			if strings.TrimSpace(bodyFile) != "" {
				raw, err := os.ReadFile(bodyFile)
				if err != nil {
					return errs.Wrapf(err, "read body file %q", bodyFile)
				}
				body = string(raw)
			}

			item, err := svc.CreateItem(ctx, confirmation.CreateItemInput{
				ItemID:   itemID,
				Type:     itemType,
				Title:    title,
				Body:     body,
				AuthorID: authorID,
				Status:   status,
			})
			if err != nil {
				logging.Error(ctx, "create item failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "create item")
			}
			if enabled {
				if err := svc.SetEnabled(ctx, item.ItemID, true); err != nil {
					return errs.Wrap(err, "enable item")
				}
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "item created: id=%d type=%s enabled=%t\n", item.ItemID, item.Type, enabled); err != nil {
				return errs.Wrap(err, "write create output")
			}
			return nil
		}),
	}

	cmd.Flags().Uint64("id", 0, "Item id (default: next free id)")
	cmd.Flags().String("type", "post", "Item type")
	cmd.Flags().String("title", "", "Item title")
	cmd.Flags().String("body", "", "Item body markdown")
	cmd.Flags().String("body-file", "", "Path to item body markdown file")
	cmd.Flags().Uint64("author", 0, "Author user id")
	cmd.Flags().String("status", ports.StatusPublish, "Item status: publish, private or draft")
	cmd.Flags().Bool("enabled", false, "Enable read confirmations for the item")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newItemShowCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an item and its confirmation state",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("id")
			item, err := svc.GetItem(ctx, itemID)
			if err != nil {
				return errs.Wrapf(err, "get item %d", itemID)
			}
			enabled, err := svc.IsEnabled(ctx, itemID)
			if err != nil {
				return errs.Wrap(err, "read confirmation flag")
			}
			confirmed, err := svc.GetConfirmedUsers(ctx, itemID)
			if err != nil {
				return errs.Wrap(err, "read confirmations")
			}

			out := cmd.OutOrStdout()
			if err := writeSection(out, item.Title); err != nil {
				return err
			}
			rows := [][]string{
				{"id", strconv.FormatUint(item.ItemID, 10)},
				{"type", item.Type},
				{"status", orDash(item.Status)},
				{"author", strconv.FormatUint(item.AuthorID, 10)},
				{"supported", strconv.FormatBool(svc.SupportsType(item.Type))},
				{"enabled", strconv.FormatBool(enabled)},
				{"confirmations", strconv.Itoa(len(confirmed))},
				{"permalink", confirmation.Permalink(item.ItemID)},
			}
			return renderTable(out, []string{"field", "value"}, rows)
		}),
	}

	cmd.Flags().Uint64("id", 0, "Item id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newItemListCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemType, _ := cmd.Flags().GetString("type")
			status, _ := cmd.Flags().GetString("status")

			items, err := svc.ListItems(ctx, ports.ContentItemFilter{
				Type:   strings.ToLower(strings.TrimSpace(itemType)),
				Status: strings.ToLower(strings.TrimSpace(status)),
			})
			if err != nil {
				logging.Error(ctx, "list items failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "list items")
			}
			if len(items) == 0 {
				return writeDim(cmd.OutOrStdout(), "no items")
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				enabled, err := svc.IsEnabled(ctx, item.ItemID)
				if err != nil {
					return errs.Wrapf(err, "read confirmation flag of item %d", item.ItemID)
				}
				rows = append(rows, []string{
					strconv.FormatUint(item.ItemID, 10),
					item.Type,
					orDash(item.Status),
					strconv.FormatBool(enabled),
					item.Title,
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"id", "type", "status", "enabled", "title"}, rows)
		}),
	}

	cmd.Flags().String("type", "", "Filter by item type")
	cmd.Flags().String("status", "", "Filter by item status")

	return cmd
}

func newItemToggleCmd(svc *confirmation.Service, enabled bool) *cobra.Command {
	use, short := "disable", "Turn read confirmations off for an item"
	if enabled {
		use, short = "enable", "Turn read confirmations on for an item"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			itemID, _ := cmd.Flags().GetUint64("id")
			if _, err := svc.GetItem(ctx, itemID); err != nil {
				return errs.Wrapf(err, "get item %d", itemID)
			}
			if err := svc.SetEnabled(ctx, itemID, enabled); err != nil {
				logging.Error(ctx, "toggle item failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "set confirmation flag")
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "item %d enabled=%t\n", itemID, enabled); err != nil {
				return errs.Wrap(err, "write toggle output")
			}
			return nil
		}),
	}

	cmd.Flags().Uint64("id", 0, "Item id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func init() {
	rootCmd.AddCommand(itemCmd)
	itemCmd.AddCommand(
		newItemCreateCmd(nil),
		newItemShowCmd(nil),
		newItemListCmd(nil),
		newItemToggleCmd(nil, true),
		newItemToggleCmd(nil, false),
	)
}
