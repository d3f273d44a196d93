package model

// BadgePrintJob: one row per admitted ticket, ever. The unique index on
// ticket_id backs that invariant at the storage layer.
type BadgePrintJob struct {
	ID        string `gorm:"column:id;type:text;primaryKey"`
	TicketID  string `gorm:"column:ticket_id;type:text;not null;uniqueIndex"`
	Status    string `gorm:"column:status;type:text;not null;index"`
	Priority  int    `gorm:"column:priority;not null;default:0"`
	QueuedAt  string `gorm:"column:queued_at;type:text;not null"`
	BadgeData string `gorm:"column:badge_data;type:text;not null"`
	Attempts  int    `gorm:"column:attempts;not null;default:0"`
	LastError string `gorm:"column:last_error;type:text"`
}

func (BadgePrintJob) TableName() string {
	return "badge_print_jobs"
}
