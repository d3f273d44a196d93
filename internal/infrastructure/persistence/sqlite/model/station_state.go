package model

// StationState is stored in both databases: the station writes its own row
// locally, the server keeps one row per station from heartbeats.
type StationState struct {
	StationID        string `gorm:"column:station_id;type:text;primaryKey"`
	LastHeartbeat    string `gorm:"column:last_heartbeat;type:text;not null"`
	PendingSyncCount int    `gorm:"column:pending_sync_count;not null;default:0"`
	StuckSyncCount   int    `gorm:"column:stuck_sync_count;not null;default:0"`
	DeviceType       string `gorm:"column:device_type;type:text;not null"`
}

func (StationState) TableName() string {
	return "station_states"
}
