// Package repository provides store interfaces and GORM implementations
// for events, rules, and alerts. The correlation engine only ever sees the
// interfaces, so tests can substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

// EventCriteria mirrors a rule's matching criteria for windowed event
// counting. Threshold evaluation re-applies the rule's exact semantics to
// historical events instead of reusing the in-memory predicate result.
type EventCriteria struct {
	Source      string
	SeverityMin *int
	Contains    string
	MetaMatch   entities.Metadata
}

// EventFilter controls event listing queries.
type EventFilter struct {
	BeforeID    uint // keyset pagination: only events with ID < BeforeID
	Source      string
	SeverityMin *int
	SeverityMax *int
	Query       string // case-insensitive substring on message
	MetaKey     string
	MetaValue   string
	Limit       int
}

// EventRepository handles event persistence and windowed counting.
type EventRepository interface {
	Create(ctx context.Context, event *entities.Event) error
	Get(ctx context.Context, id uint) (*entities.Event, error)
	List(ctx context.Context, filter EventFilter) ([]entities.Event, error)
	// CountMatching counts events at or after since that satisfy the
	// criteria and whose metadata groupAttr equals groupKey.
	CountMatching(ctx context.Context, crit EventCriteria, groupAttr, groupKey string, since time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// RuleRepository handles rule definitions.
type RuleRepository interface {
	Create(ctx context.Context, rule *entities.Rule) error
	Get(ctx context.Context, id uint) (*entities.Rule, error)
	List(ctx context.Context, limit int) ([]entities.Rule, error)
	// ListEnabled returns enabled rules in ascending ID order, the
	// evaluation order the engine depends on.
	ListEnabled(ctx context.Context) ([]entities.Rule, error)
	Toggle(ctx context.Context, id uint, enabled bool) error
	Delete(ctx context.Context, id uint) error
	CountByName(ctx context.Context, name string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountEnabled(ctx context.Context) (int64, error)
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	Status   string
	GroupKey string
	RuleID   uint
	Limit    int
	Offset   int
}

// DetailedAlertFilter adds event-side filters for the joined projection.
type DetailedAlertFilter struct {
	AlertFilter
	SeverityMin *int
	SeverityMax *int
	Source      string // case-insensitive exact match on event source
	Query       string // case-insensitive substring on title or event message
}

// DetailedAlert is the joined alert + rule + event projection served to
// clients that render alert lists.
type DetailedAlert struct {
	ID             uint      `json:"id"`
	RuleID         uint      `json:"rule_id"`
	EventID        uint      `json:"event_id"`
	Title          string    `json:"title"`
	GroupKey       *string   `json:"group_key,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	RuleName       string    `json:"rule_name"`
	EventTimestamp time.Time `gorm:"column:event_ts" json:"event_ts"`
	EventSource    string    `json:"event_source"`
	EventSeverity  int       `json:"event_severity"`
	EventMessage   string    `json:"event_message"`
}

// ActiveAlert is the result of a most-recent-active lookup: creation time
// feeds the throttle check, its existence feeds the dedup check.
type ActiveAlert struct {
	ID        uint
	CreatedAt time.Time
}

// GroupKeyCount pairs a group key with its alert count.
type GroupKeyCount struct {
	GroupKey string `json:"group_key"`
	Count    int64  `json:"count"`
}

// AlertRepository handles alert persistence and lifecycle.
type AlertRepository interface {
	Create(ctx context.Context, alert *entities.Alert) error
	Get(ctx context.Context, id uint) (*entities.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	ListDetailed(ctx context.Context, filter DetailedAlertFilter) ([]DetailedAlert, error)
	CountDetailed(ctx context.Context, filter DetailedAlertFilter) (int64, error)
	GetDetailed(ctx context.Context, id uint) (*DetailedAlert, error)
	// MostRecentActive returns the newest open/ack alert for the rule and
	// group, or nil when none exists. Closed alerts are never considered,
	// and neither are ungrouped alerts (NULL group key).
	MostRecentActive(ctx context.Context, ruleID uint, groupKey string) (*ActiveAlert, error)
	UpdateStatus(ctx context.Context, id uint, status string) (*entities.Alert, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	TopGroupKeys(ctx context.Context, limit int) ([]GroupKeyCount, error)
}

// Stores bundles the three repositories bound to one database handle, so a
// transaction-scoped bundle can be handed to the engine.
type Stores struct {
	Events EventRepository
	Rules  RuleRepository
	Alerts AlertRepository
}

// NewStores creates repositories over the given handle.
func NewStores(db *gorm.DB, isMySQL bool) Stores {
	return Stores{
		Events: NewEventRepository(db, isMySQL),
		Rules:  NewRuleRepository(db),
		Alerts: NewAlertRepository(db),
	}
}
