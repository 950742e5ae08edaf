package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/errors"
)

// ruleRepository implements RuleRepository.
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Create persists a new rule.
func (r *ruleRepository) Create(ctx context.Context, rule *entities.Rule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// Get returns a single rule by ID.
func (r *ruleRepository) Get(ctx context.Context, id uint) (*entities.Rule, error) {
	var rule entities.Rule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule %d: %w", id, err)
	}
	return &rule, nil
}

// List returns rules newest first.
func (r *ruleRepository) List(ctx context.Context, limit int) ([]entities.Rule, error) {
	if limit <= 0 {
		limit = 100
	}
	var rules []entities.Rule
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ListEnabled returns enabled rules in ascending ID order. The engine
// relies on this order for deterministic evaluation.
func (r *ruleRepository) ListEnabled(ctx context.Context) ([]entities.Rule, error) {
	var rules []entities.Rule
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}
	return rules, nil
}

// Toggle enables or disables a rule.
func (r *ruleRepository) Toggle(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule.
func (r *ruleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Rule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CountByName returns the number of rules with the given name.
func (r *ruleRepository) CountByName(ctx context.Context, name string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rules by name: %w", err)
	}
	return count, nil
}

// Count returns the total number of rules.
func (r *ruleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Rule{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

// CountEnabled returns the number of enabled rules.
func (r *ruleRepository) CountEnabled(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("enabled = ?", true).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count enabled rules: %w", err)
	}
	return count, nil
}
