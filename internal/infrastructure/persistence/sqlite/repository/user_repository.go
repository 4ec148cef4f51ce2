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

type UserRepository struct {
	db *gorm.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUser(ctx context.Context, userID uint64) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user")
	}
	return mapUser(row), nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.User
	if err := db.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query users")
	}

	users := make([]ports.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}
	return users, nil
}

// SaveUser inserts when UserID is zero, otherwise upserts by id.
func (r *UserRepository) SaveUser(ctx context.Context, user ports.User) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	login := strings.TrimSpace(user.Login)
	if login == "" {
		return ports.User{}, errors.New("user login is required")
	}
	role := strings.TrimSpace(user.Role)
	if role == "" {
		role = ports.RoleSubscriber
	}
	displayName := strings.TrimSpace(user.DisplayName)
	if displayName == "" {
		displayName = login
	}

	row := model.User{
		UserID:      user.UserID,
		Login:       login,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   nowUTCString(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"login", "display_name", "role"}),
	}).Create(&row).Error; err != nil {
		return ports.User{}, errs.Wrap(err, "upsert user")
	}
	return mapUser(row), nil
}

func mapUser(row model.User) ports.User {
	return ports.User{
		UserID:      row.UserID,
		Login:       row.Login,
		DisplayName: row.DisplayName,
		Role:        row.Role,
	}
}
