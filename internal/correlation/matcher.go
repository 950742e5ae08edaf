// Package correlation implements the rule evaluation engine: for every
// ingested event it walks the enabled rules in ID order and decides, per
// rule, whether to raise an alert or suppress it by throttle, dedup, or
// threshold policy.
package correlation

import (
	"strings"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
)

// RuleMatches reports whether the event satisfies every configured
// criterion of the rule. Unset criteria never constrain; a rule with no
// criteria matches everything.
func RuleMatches(rule *entities.Rule, event *entities.Event) bool {
	if rule.Source != "" && event.Source != rule.Source {
		return false
	}
	if rule.SeverityMin != nil && event.Severity < *rule.SeverityMin {
		return false
	}
	if rule.Contains != "" && !strings.Contains(strings.ToLower(event.Message), strings.ToLower(rule.Contains)) {
		return false
	}
	if len(rule.MetaMatch) > 0 && !event.Meta.ContainsAll(rule.MetaMatch) {
		return false
	}
	return true
}

// criteriaFor converts a rule's match criteria into the store-level form
// used for windowed threshold counting.
func criteriaFor(rule *entities.Rule) repository.EventCriteria {
	return repository.EventCriteria{
		Source:      rule.Source,
		SeverityMin: rule.SeverityMin,
		Contains:    rule.Contains,
		MetaMatch:   rule.MetaMatch,
	}
}
