package model

// All lists every table for schema migration.
func All() []any {
	return []any{
		&Item{},
		&ItemMeta{},
		&User{},
		&Option{},
		&CacheEntry{},
	}
}
