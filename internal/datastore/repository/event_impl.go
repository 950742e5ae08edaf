package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/errors"
)

// eventRepository implements EventRepository.
type eventRepository struct {
	db      *gorm.DB
	isMySQL bool // Dialect flag: MySQL needs JSON_UNQUOTE, SQLite json_extract returns text
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *gorm.DB, isMySQL bool) EventRepository {
	return &eventRepository{db: db, isMySQL: isMySQL}
}

// Create persists a new event.
func (r *eventRepository) Create(ctx context.Context, event *entities.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Get returns a single event by ID.
func (r *eventRepository) Get(ctx context.Context, id uint) (*entities.Event, error) {
	var event entities.Event
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return &event, nil
}

// List returns events matching the filter, newest first.
func (r *eventRepository) List(ctx context.Context, filter EventFilter) ([]entities.Event, error) {
	query := r.db.WithContext(ctx).Model(&entities.Event{})

	if filter.BeforeID > 0 {
		query = query.Where("id < ?", filter.BeforeID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.SeverityMin != nil {
		query = query.Where("severity >= ?", *filter.SeverityMin)
	}
	if filter.SeverityMax != nil {
		query = query.Where("severity <= ?", *filter.SeverityMax)
	}
	if filter.Query != "" {
		query = query.Where("LOWER(message) LIKE ? ESCAPE ?", likePattern(filter.Query), likeEscape)
	}
	if filter.MetaKey != "" {
		if filter.MetaValue != "" {
			query = r.whereMetaEquals(query, filter.MetaKey, filter.MetaValue)
		} else {
			query = r.whereMetaHasKey(query, filter.MetaKey)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var events []entities.Event
	if err := query.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// CountMatching counts events in the trailing window that re-satisfy the
// rule criteria and carry the given group key. The triggering event is
// included because it is persisted before evaluation begins.
func (r *eventRepository) CountMatching(ctx context.Context, crit EventCriteria, groupAttr, groupKey string, since time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.Event{}).Where("ts >= ?", since)

	if crit.Source != "" {
		query = query.Where("source = ?", crit.Source)
	}
	if crit.SeverityMin != nil {
		query = query.Where("severity >= ?", *crit.SeverityMin)
	}
	if crit.Contains != "" {
		query = query.Where("LOWER(message) LIKE ? ESCAPE ?", likePattern(crit.Contains), likeEscape)
	}
	for k, v := range crit.MetaMatch {
		query = r.whereMetaEquals(query, k, v)
	}
	query = r.whereMetaEquals(query, groupAttr, groupKey)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count matching events: %w", err)
	}
	return count, nil
}

// Count returns the total number of events.
func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Event{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// whereMetaEquals filters on meta[key] == value. MySQL's JSON_EXTRACT
// returns a quoted JSON value, so it needs JSON_UNQUOTE; SQLite's
// json_extract already yields SQL text.
func (r *eventRepository) whereMetaEquals(query *gorm.DB, key, value string) *gorm.DB {
	if r.isMySQL {
		return query.Where("JSON_UNQUOTE(JSON_EXTRACT(meta, ?)) = ?", jsonPath(key), value)
	}
	return query.Where("json_extract(meta, ?) = ?", jsonPath(key), value)
}

// whereMetaHasKey filters on the presence of a meta key.
func (r *eventRepository) whereMetaHasKey(query *gorm.DB, key string) *gorm.DB {
	if r.isMySQL {
		return query.Where("JSON_EXTRACT(meta, ?) IS NOT NULL", jsonPath(key))
	}
	return query.Where("json_extract(meta, ?) IS NOT NULL", jsonPath(key))
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, ``) + `"`
}

// likeEscape is bound as the ESCAPE argument of every LIKE built from
// likePattern; a bind parameter sidesteps the dialects' differing
// backslash rules inside string literals.
const likeEscape = `\`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern. LIKE
// metacharacters in the needle are escaped so "50%" matches a literal
// percent sign rather than acting as a wildcard.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
