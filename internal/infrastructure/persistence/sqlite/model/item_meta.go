package model

// ItemMeta is one metadata field of a content item. The composite key makes
// (item_id, meta_key) unique, which the compare-and-swap insert relies on.
type ItemMeta struct {
	ItemID    uint64 `gorm:"column:item_id;not null;primaryKey"`
	MetaKey   string `gorm:"column:meta_key;type:text;not null;primaryKey"`
	MetaValue string `gorm:"column:meta_value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (ItemMeta) TableName() string {
	return "item_meta"
}
