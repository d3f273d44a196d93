package model

type Ticket struct {
	ID           string `gorm:"column:id;type:text;primaryKey"`
	EventID      string `gorm:"column:event_id;type:text;not null;index"`
	AttendeeName string `gorm:"column:attendee_name;type:text;not null"`
	Tier         string `gorm:"column:tier;type:text;not null"`
	Status       string `gorm:"column:status;type:text;not null;default:active"`
}

func (Ticket) TableName() string {
	return "tickets"
}
