package model

// CanonicalCheckIn holds at most one row per ticket. The primary key on
// ticket_id is the storage-level arbiter for at-most-once admission; the
// unique index on source_event_id makes replayed submissions resolvable.
type CanonicalCheckIn struct {
	TicketID      string `gorm:"column:ticket_id;type:text;primaryKey"`
	CheckedInAt   string `gorm:"column:checked_in_at;type:text;not null"`
	Method        string `gorm:"column:method;type:text;not null"`
	StationID     string `gorm:"column:station_id;type:text;not null"`
	SourceEventID string `gorm:"column:source_event_id;type:text;not null;uniqueIndex"`
}

func (CanonicalCheckIn) TableName() string {
	return "canonical_checkins"
}
