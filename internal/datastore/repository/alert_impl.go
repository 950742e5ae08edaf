package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/errors"
)

// detailedSelect is the column list for the alert + rule + event join.
const detailedSelect = "alerts.id, alerts.rule_id, alerts.event_id, alerts.title, alerts.group_key, " +
	"alerts.status, alerts.created_at, alerts.updated_at, rules.name AS rule_name, " +
	"events.ts AS event_ts, events.source AS event_source, events.severity AS event_severity, " +
	"events.message AS event_message"

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Create persists a new alert.
func (r *alertRepository) Create(ctx context.Context, alert *entities.Alert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Get returns a single alert by ID.
func (r *alertRepository) Get(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return &alert, nil
}

// List returns alerts matching the filter, newest first.
func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	query := r.db.WithContext(ctx).Model(&entities.Alert{})
	query = applyAlertFilter(query, filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var alerts []entities.Alert
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// ListDetailed returns the joined alert projection, newest first.
func (r *alertRepository) ListDetailed(ctx context.Context, filter DetailedAlertFilter) ([]DetailedAlert, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := r.detailedQuery(ctx, filter).
		Select(detailedSelect).
		Order("alerts.created_at DESC").
		Limit(limit).
		Offset(filter.Offset)

	var out []DetailedAlert
	if err := query.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list detailed alerts: %w", err)
	}
	return out, nil
}

// CountDetailed counts alerts matching the detailed filter.
func (r *alertRepository) CountDetailed(ctx context.Context, filter DetailedAlertFilter) (int64, error) {
	var count int64
	if err := r.detailedQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count detailed alerts: %w", err)
	}
	return count, nil
}

// GetDetailed returns the joined projection for one alert.
func (r *alertRepository) GetDetailed(ctx context.Context, id uint) (*DetailedAlert, error) {
	var out DetailedAlert
	err := r.db.WithContext(ctx).Table("alerts").
		Select(detailedSelect).
		Joins("JOIN rules ON rules.id = alerts.rule_id").
		Joins("JOIN events ON events.id = alerts.event_id").
		Where("alerts.id = ?", id).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get detailed alert %d: %w", id, err)
	}
	if out.ID == 0 {
		return nil, ErrAlertNotFound
	}
	return &out, nil
}

// MostRecentActive returns the newest open/ack alert for the rule and
// group, or nil when none exists. Ungrouped alerts store a NULL group key
// and never match the equality predicate, so they suppress nothing.
func (r *alertRepository) MostRecentActive(ctx context.Context, ruleID uint, groupKey string) (*ActiveAlert, error) {
	var alert entities.Alert
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND group_key = ? AND status IN ?",
			ruleID, groupKey, []string{entities.StatusOpen, entities.StatusAck}).
		Order("created_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active alert for rule %d group %q: %w", ruleID, groupKey, err)
	}
	return &ActiveAlert{ID: alert.ID, CreatedAt: alert.CreatedAt}, nil
}

// UpdateStatus transitions an alert's lifecycle status and returns the
// updated row. Any direct transition between valid statuses is allowed.
func (r *alertRepository) UpdateStatus(ctx context.Context, id uint, status string) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Model(&alert).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update alert %d status: %w", id, err)
	}
	return &alert, nil
}

// Count returns the total number of alerts.
func (r *alertRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Alert{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// CountByStatus returns alert counts grouped by status.
func (r *alertRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by status: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// TopGroupKeys returns the group keys with the most alerts. Ungrouped
// alerts are excluded; the empty-string group counts like any other.
func (r *alertRepository) TopGroupKeys(ctx context.Context, limit int) ([]GroupKeyCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []GroupKeyCount
	err := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Select("group_key, COUNT(*) AS count").
		Where("group_key IS NOT NULL").
		Group("group_key").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank group keys: %w", err)
	}
	return rows, nil
}

// detailedQuery builds the joined base query with all filters applied.
func (r *alertRepository) detailedQuery(ctx context.Context, filter DetailedAlertFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Table("alerts").
		Joins("JOIN rules ON rules.id = alerts.rule_id").
		Joins("JOIN events ON events.id = alerts.event_id")

	query = applyAlertFilter(query, filter.AlertFilter)

	if filter.SeverityMin != nil {
		query = query.Where("events.severity >= ?", *filter.SeverityMin)
	}
	if filter.SeverityMax != nil {
		query = query.Where("events.severity <= ?", *filter.SeverityMax)
	}
	if filter.Source != "" {
		query = query.Where("LOWER(events.source) = LOWER(?)", filter.Source)
	}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		query = query.Where("LOWER(alerts.title) LIKE ? ESCAPE ? OR LOWER(events.message) LIKE ? ESCAPE ?",
			pattern, likeEscape, pattern, likeEscape)
	}
	return query
}

func applyAlertFilter(query *gorm.DB, filter AlertFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("alerts.status = ?", filter.Status)
	}
	if filter.GroupKey != "" {
		query = query.Where("alerts.group_key = ?", filter.GroupKey)
	}
	if filter.RuleID > 0 {
		query = query.Where("alerts.rule_id = ?", filter.RuleID)
	}
	return query
}
