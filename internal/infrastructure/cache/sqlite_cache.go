package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
	"readconfirm/internal/infrastructure/persistence/sqlite/model"
	"readconfirm/internal/ports"
)

type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.CacheEntry
	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}

	if row.ExpiresAt > 0 && row.ExpiresAt <= c.now().UnixNano() {
		if err := c.db.WithContext(ctx).
			Where("key = ? AND expires_at = ?", trimmedKey, row.ExpiresAt).
			Delete(&model.CacheEntry{}).Error; err != nil {
			return "", false, errs.Wrap(err, "delete expired cache key")
		}
		return "", false, nil
	}

	return row.Value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	now := c.now()
	row := model.CacheEntry{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		row.ExpiresAt = now.Add(ttl).UnixNano()
	}

	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.db.WithContext(ctx).Where("key = ?", trimmedKey).Delete(&model.CacheEntry{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

// PurgeExpired deletes every entry whose deadline has passed. Entries without a
// deadline are kept.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}

	result := c.db.WithContext(ctx).
		Where("expires_at > 0 AND expires_at <= ?", c.now().UnixNano()).
		Delete(&model.CacheEntry{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "purge expired cache keys")
	}
	return result.RowsAffected, nil
}

// RunPurge calls PurgeExpired every interval until ctx is done.
func (c *SQLiteCache) RunPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "cache.sqlite"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		purged, err := c.PurgeExpired(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn(logCtx, "purge expired cache keys failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		if purged > 0 {
			logging.Debug(logCtx, "expired cache keys purged", slog.Int64("count", purged))
		}
	}
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", errors.New("key is required")
	}
	return trimmedKey, nil
}
