package entities

import (
	"time"

	"github.com/tkarvo/sentinel-go/internal/errors"
)

// Rule criteria and policy limits.
const (
	maxRuleNameLen   = 120
	maxSourceLen     = 64
	maxContainsLen   = 200
	maxThrottleSec   = 86400
	maxThresholdSec  = 86400
	maxThresholdHits = 100000
)

// Rule is a user-defined correlation policy: matching criteria plus
// throttle and threshold parameters. Unset criteria impose no constraint;
// a rule with no criteria matches every event.
type Rule struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:120;not null;uniqueIndex" json:"name"`
	Enabled bool   `gorm:"not null;index" json:"enabled"`

	// Criteria. Empty string means unset for Source and Contains;
	// SeverityMin uses a pointer because 0 is a valid bound.
	Source      string   `gorm:"size:64;default:''" json:"source,omitempty"`
	SeverityMin *int     `json:"severity_min,omitempty"`
	Contains    string   `gorm:"size:200;default:''" json:"contains,omitempty"`
	MetaMatch   Metadata `gorm:"type:text" json:"meta_match,omitempty"`

	// ThrottleSeconds: nil means use the system default, 0 disables
	// throttling for this rule.
	ThrottleSeconds *int `json:"throttle_seconds,omitempty"`

	// Threshold: alert only after ThresholdCount matching events within
	// ThresholdSeconds. Both set or both unset.
	ThresholdCount   *int `json:"threshold_count,omitempty"`
	ThresholdSeconds *int `json:"threshold_seconds,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Rule) TableName() string {
	return "rules"
}

// HasThreshold reports whether the threshold pair is configured.
func (r *Rule) HasThreshold() bool {
	return r.ThresholdCount != nil && r.ThresholdSeconds != nil
}

// Validate checks the rule definition. Malformed rules are rejected at
// creation time and never reach the correlation engine.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.NewValidation("name", "must not be empty")
	}
	if len(r.Name) > maxRuleNameLen {
		return errors.NewValidation("name", "must be at most 120 characters")
	}
	if len(r.Source) > maxSourceLen {
		return errors.NewValidation("source", "must be at most 64 characters")
	}
	if len(r.Contains) > maxContainsLen {
		return errors.NewValidation("contains", "must be at most 200 characters")
	}
	if r.SeverityMin != nil && (*r.SeverityMin < SeverityMin || *r.SeverityMin > SeverityMax) {
		return errors.NewValidation("severity_min", "must be between 0 and 10")
	}
	if r.ThrottleSeconds != nil && (*r.ThrottleSeconds < 0 || *r.ThrottleSeconds > maxThrottleSec) {
		return errors.NewValidation("throttle_seconds", "must be between 0 and 86400")
	}
	if (r.ThresholdCount == nil) != (r.ThresholdSeconds == nil) {
		return errors.NewValidation("threshold", "threshold_count and threshold_seconds must be set together")
	}
	if r.ThresholdCount != nil && (*r.ThresholdCount < 1 || *r.ThresholdCount > maxThresholdHits) {
		return errors.NewValidation("threshold_count", "must be between 1 and 100000")
	}
	if r.ThresholdSeconds != nil && (*r.ThresholdSeconds < 1 || *r.ThresholdSeconds > maxThresholdSec) {
		return errors.NewValidation("threshold_seconds", "must be between 1 and 86400")
	}
	return nil
}
