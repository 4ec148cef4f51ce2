package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"readconfirm/internal/bootstrap/logging"
	domain "readconfirm/internal/domain/confirmation"
	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

type seedFile struct {
	Users []seedUser `toml:"users"`
	Items []seedItem `toml:"items"`
}

type seedUser struct {
	ID          uint64 `toml:"id"`
	Login       string `toml:"login"`
	DisplayName string `toml:"display_name"`
	Role        string `toml:"role"`
}

type seedItem struct {
	ID          uint64   `toml:"id"`
	Type        string   `toml:"type"`
	Title       string   `toml:"title"`
	Body        string   `toml:"body"`
	AuthorID    uint64   `toml:"author_id"`
	Status      string   `toml:"status"`
	Enabled     bool     `toml:"enabled"`
	ConfirmedBy []uint64 `toml:"confirmed_by"`
}

type seedSummary struct {
	Users         int
	Items         int
	Confirmations int
}

func loadSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, errs.Wrapf(err, "read seed file %q", path)
	}

	var seed seedFile
	if err := toml.Unmarshal(raw, &seed); err != nil {
		return seedFile{}, errs.Wrapf(err, "decode seed file %q", path)
	}
	for i, item := range seed.Items {
		if item.Type == "" {
			seed.Items[i].Type = "post"
		}
	}
	return seed, nil
}

func applySeed(ctx context.Context, svc *confirmation.Service, seed seedFile) (seedSummary, error) {
	var summary seedSummary
	for _, u := range seed.Users {
		if _, err := svc.SaveUser(ctx, ports.User{
			UserID:      u.ID,
			Login:       u.Login,
			DisplayName: u.DisplayName,
			Role:        u.Role,
		}); err != nil {
			return summary, errs.Wrapf(err, "seed user %q", u.Login)
		}
		summary.Users++
	}

	for _, it := range seed.Items {
		item, err := svc.CreateItem(ctx, confirmation.CreateItemInput{
			ItemID:   it.ID,
			Type:     it.Type,
			Title:    it.Title,
			Body:     it.Body,
			AuthorID: it.AuthorID,
			Status:   it.Status,
		})
		if err != nil {
			return summary, errs.Wrapf(err, "seed item %q", it.Title)
		}
		if err := svc.SetEnabled(ctx, item.ItemID, it.Enabled); err != nil {
			return summary, errs.Wrapf(err, "seed item %d flag", item.ItemID)
		}
		for _, userID := range it.ConfirmedBy {
			changed, err := svc.Confirm(ctx, domain.UserID(userID), item.ItemID)
			if err != nil {
				return summary, errs.Wrapf(err, "seed confirmation %d on item %d", userID, item.ItemID)
			}
			if changed {
				summary.Confirmations++
			}
		}
		summary.Items++
	}
	return summary, nil
}

func newSeedCmd(svc *confirmation.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and items from a TOML fixture file",
		RunE: serviceRunE(svc, func(cmd *cobra.Command, _ []string, svc *confirmation.Service) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			path, _ := cmd.Flags().GetString("file")
			seed, err := loadSeedFile(path)
			if err != nil {
				return err
			}
			summary, err := applySeed(ctx, svc, seed)
			if err != nil {
				logging.Error(ctx, "seed failed", slog.Any("err", errs.Loggable(err)))
				return err
			}

			logging.Info(ctx, "seed finished",
				slog.Int("users", summary.Users),
				slog.Int("items", summary.Items),
				slog.Int("confirmations", summary.Confirmations),
			)
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded users=%d items=%d confirmations=%d\n",
				summary.Users, summary.Items, summary.Confirmations); err != nil {
				return errs.Wrap(err, "write seed output")
			}
			return nil
		}),
	}
	cmd.Flags().String("file", "configs/seed.toml", "Path to the TOML fixture file")
	return cmd
}

func init() {
	rootCmd.AddCommand(newSeedCmd(nil))
}
