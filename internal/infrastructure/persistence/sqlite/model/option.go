package model

type Option struct {
	Name      string `gorm:"column:name;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Option) TableName() string {
	return "options"
}
