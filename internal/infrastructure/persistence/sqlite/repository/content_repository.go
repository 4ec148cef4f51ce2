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

type ContentRepository struct {
	db *gorm.DB
}

var _ ports.ContentRepository = (*ContentRepository)(nil)

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) GetItem(ctx context.Context, itemID uint64) (ports.ContentItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ContentItem{}, err
	}

	var row model.Item
	if err := db.Where("item_id = ?", itemID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ContentItem{}, ports.ErrItemNotFound
		}
		return ports.ContentItem{}, errs.Wrap(err, "query item")
	}
	return mapItem(row), nil
}

func (r *ContentRepository) ListItems(ctx context.Context, filter ports.ContentItemFilter) ([]ports.ContentItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Item{})
	if itemType := strings.TrimSpace(filter.Type); itemType != "" {
		query = query.Where("type = ?", itemType)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []model.Item
	if err := query.Order("item_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query items")
	}

	items := make([]ports.ContentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapItem(row))
	}
	return items, nil
}

// SaveItem inserts when ItemID is zero, otherwise upserts by id.
func (r *ContentRepository) SaveItem(ctx context.Context, item ports.ContentItem) (ports.ContentItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ContentItem{}, err
	}

	now := nowUTCString()
	row := model.Item{
		ItemID:    item.ItemID,
		Type:      strings.TrimSpace(item.Type),
		Title:     item.Title,
		Body:      item.Body,
		AuthorID:  item.AuthorID,
		Status:    strings.TrimSpace(item.Status),
		CreatedAt: item.CreatedAt,
		UpdatedAt: now,
	}
	if row.Status == "" {
		row.Status = ports.StatusPublish
	}
	if row.CreatedAt == "" {
		row.CreatedAt = now
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "title", "body", "author_id", "status", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return ports.ContentItem{}, errs.Wrap(err, "upsert item")
	}
	return mapItem(row), nil
}

func (r *ContentRepository) GetMeta(ctx context.Context, itemID uint64, key string) (string, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return "", false, err
	}

	var row model.ItemMeta
	if err := db.Where("item_id = ? AND meta_key = ?", itemID, key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query item meta")
	}
	return row.MetaValue, true, nil
}

func (r *ContentRepository) SetMeta(ctx context.Context, itemID uint64, key string, value string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.ItemMeta{
		ItemID:    itemID,
		MetaKey:   key,
		MetaValue: value,
		UpdatedAt: nowUTCString(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}, {Name: "meta_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"meta_value": row.MetaValue,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert item meta")
	}
	return nil
}

func (r *ContentRepository) DeleteMeta(ctx context.Context, itemID uint64, key string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Where("item_id = ? AND meta_key = ?", itemID, key).Delete(&model.ItemMeta{}).Error; err != nil {
		return errs.Wrap(err, "delete item meta")
	}
	return nil
}

func (r *ContentRepository) CompareAndSwapMeta(ctx context.Context, itemID uint64, key string, prev *string, next string) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	now := nowUTCString()
	if prev == nil {
		row := model.ItemMeta{
			ItemID:    itemID,
			MetaKey:   key,
			MetaValue: next,
			UpdatedAt: now,
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return false, errs.Wrap(result.Error, "insert item meta")
		}
		return result.RowsAffected == 1, nil
	}

	result := db.Model(&model.ItemMeta{}).
		Where("item_id = ? AND meta_key = ? AND meta_value = ?", itemID, key, *prev).
		Updates(map[string]any{
			"meta_value": next,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "swap item meta")
	}
	return result.RowsAffected == 1, nil
}

func mapItem(row model.Item) ports.ContentItem {
	return ports.ContentItem{
		ItemID:    row.ItemID,
		Type:      row.Type,
		Title:     row.Title,
		Body:      row.Body,
		AuthorID:  row.AuthorID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
