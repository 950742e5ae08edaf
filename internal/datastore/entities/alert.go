package entities

import "time"

// Alert lifecycle statuses. An alert starts open, may be acknowledged, and
// ends closed. Only open and ack alerts suppress new alerts for the same
// rule and group; closed is terminal for suppression purposes.
const (
	StatusOpen   = "open"
	StatusAck    = "ack"
	StatusClosed = "closed"
)

// ValidStatus reports whether s is a known alert status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusAck, StatusClosed:
		return true
	default:
		return false
	}
}

// Alert is raised by the correlation engine when a rule's full policy
// (match + throttle + dedup + threshold) is satisfied for an event. The
// engine only creates alerts; status changes happen via the API.
type Alert struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	RuleID  uint   `gorm:"not null;index:idx_alerts_rule_created,priority:1" json:"rule_id"`
	EventID uint   `gorm:"not null;index" json:"event_id"`
	Title   string `gorm:"size:200;not null" json:"title"`

	// GroupKey scopes throttle/dedup/threshold decisions. NULL when the
	// triggering event lacked the configured grouping attribute; a present
	// empty-string value is a real group, distinct from no group at all.
	GroupKey *string `gorm:"size:120;index:idx_alerts_group_created,priority:1" json:"group_key,omitempty"`

	Status string `gorm:"size:16;not null;default:open;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_alerts_rule_created,priority:2;index:idx_alerts_group_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// Active reports whether the alert still suppresses new alerts for its
// rule and group.
func (a *Alert) Active() bool {
	return a.Status == StatusOpen || a.Status == StatusAck
}
