package model

// SnapshotKV backs the station's best-effort ticket admission cache.
type SnapshotKV struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (SnapshotKV) TableName() string {
	return "snapshot_kv"
}
