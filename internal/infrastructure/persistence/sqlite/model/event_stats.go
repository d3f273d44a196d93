package model

type EventStats struct {
	EventID   string `gorm:"column:event_id;type:text;primaryKey"`
	CheckedIn int64  `gorm:"column:checked_in;not null;default:0"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (EventStats) TableName() string {
	return "event_stats"
}
