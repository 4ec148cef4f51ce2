package model

type User struct {
	UserID      uint64 `gorm:"column:user_id;primaryKey;autoIncrement"`
	Login       string `gorm:"column:login;type:text;not null;uniqueIndex"`
	DisplayName string `gorm:"column:display_name;type:text;not null"`
	Role        string `gorm:"column:role;type:text;not null;default:subscriber"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (User) TableName() string {
	return "users"
}
