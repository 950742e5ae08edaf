package entities

import "time"

// Event is one ingested occurrence. Events are immutable once created; the
// correlation engine only ever reads them.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"column:ts;not null;index" json:"ts"`
	Source    string    `gorm:"size:64;not null;index" json:"source"`
	Severity  int       `gorm:"not null" json:"severity"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Meta      Metadata  `gorm:"type:text" json:"meta,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "events"
}

// Severity bounds for events and rule criteria.
const (
	SeverityMin = 0
	SeverityMax = 10
)
