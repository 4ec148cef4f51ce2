package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"readconfirm/internal/errs"
	"readconfirm/internal/infrastructure/persistence/sqlite/model"
	"readconfirm/internal/ports"
)

type OptionRepository struct {
	db *gorm.DB
}

var _ ports.OptionRepository = (*OptionRepository)(nil)

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

func (r *OptionRepository) GetOption(ctx context.Context, name string) (string, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return "", false, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, errors.New("option name is required")
	}

	var row model.Option
	if err := db.Where("name = ?", name).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query option")
	}
	return row.Value, true, nil
}

func (r *OptionRepository) SetOption(ctx context.Context, name string, value string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("option name is required")
	}

	row := model.Option{
		Name:      name,
		Value:     value,
		UpdatedAt: nowUTCString(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert option")
	}
	return nil
}

func (r *OptionRepository) DeleteOption(ctx context.Context, name string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("option name is required")
	}

	if err := db.Where("name = ?", name).Delete(&model.Option{}).Error; err != nil {
		return errs.Wrap(err, "delete option")
	}
	return nil
}
