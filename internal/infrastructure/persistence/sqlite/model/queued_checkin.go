package model

// QueuedCheckIn lives in the station-resident queue database.
type QueuedCheckIn struct {
	ID              string `gorm:"column:id;type:text;primaryKey"`
	TicketID        string `gorm:"column:ticket_id;type:text;not null;index"`
	StationID       string `gorm:"column:station_id;type:text;not null;index"`
	ClientTimestamp string `gorm:"column:client_timestamp;type:text;not null"`
	Method          string `gorm:"column:method;type:text;not null"`
	Synced          bool   `gorm:"column:synced;not null;default:0;index"`
	SyncAttempts    int    `gorm:"column:sync_attempts;not null;default:0"`
	LastSyncAttempt string `gorm:"column:last_sync_attempt;type:text"`
	Error           string `gorm:"column:error;type:text"`
}

func (QueuedCheckIn) TableName() string {
	return "queued_checkins"
}
