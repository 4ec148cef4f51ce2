package model

type Item struct {
	ItemID    uint64 `gorm:"column:item_id;primaryKey;autoIncrement"`
	Type      string `gorm:"column:type;type:text;not null;index"`
	Title     string `gorm:"column:title;type:text;not null"`
	Body      string `gorm:"column:body;type:text;not null"`
	AuthorID  uint64 `gorm:"column:author_id;not null;index"`
	Status    string `gorm:"column:status;type:text;not null;default:publish"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Item) TableName() string {
	return "items"
}
