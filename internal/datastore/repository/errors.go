package repository

import "github.com/tkarvo/sentinel-go/internal/errors"

// Sentinel errors for not-found lookups.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrRuleNotFound  = errors.New("rule not found")
	ErrAlertNotFound = errors.New("alert not found")
)
