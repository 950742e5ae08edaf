package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

func TestRuleMatches(t *testing.T) {
	event := &entities.Event{
		Source:   "sshd",
		Severity: 6,
		Message:  "Failed password for root from 10.0.0.5",
		Meta:     entities.Metadata{"host": "web-1", "user": "root"},
	}

	tests := []struct {
		name string
		rule entities.Rule
		want bool
	}{
		{"empty rule matches everything", entities.Rule{}, true},
		{"source match", entities.Rule{Source: "sshd"}, true},
		{"source mismatch", entities.Rule{Source: "nginx"}, false},
		{"source is case sensitive", entities.Rule{Source: "SSHD"}, false},
		{"severity at bound", entities.Rule{SeverityMin: intPtr(6)}, true},
		{"severity below bound", entities.Rule{SeverityMin: intPtr(7)}, false},
		{"severity zero bound", entities.Rule{SeverityMin: intPtr(0)}, true},
		{"contains case insensitive", entities.Rule{Contains: "FAILED PASSWORD"}, true},
		{"contains mismatch", entities.Rule{Contains: "segfault"}, false},
		{"meta subset", entities.Rule{MetaMatch: entities.Metadata{"user": "root"}}, true},
		{"meta full", entities.Rule{MetaMatch: entities.Metadata{"user": "root", "host": "web-1"}}, true},
		{"meta value mismatch", entities.Rule{MetaMatch: entities.Metadata{"user": "admin"}}, false},
		{"meta key absent", entities.Rule{MetaMatch: entities.Metadata{"region": "eu"}}, false},
		{
			"all criteria",
			entities.Rule{Source: "sshd", SeverityMin: intPtr(5), Contains: "failed", MetaMatch: entities.Metadata{"host": "web-1"}},
			true,
		},
		{
			"one criterion fails",
			entities.Rule{Source: "sshd", SeverityMin: intPtr(5), Contains: "failed", MetaMatch: entities.Metadata{"host": "web-2"}},
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RuleMatches(&tc.rule, event))
		})
	}
}

func TestRuleMatchesNilMeta(t *testing.T) {
	event := &entities.Event{Source: "app", Severity: 3, Message: "hello"}

	assert.True(t, RuleMatches(&entities.Rule{Source: "app"}, event))
	assert.False(t, RuleMatches(&entities.Rule{MetaMatch: entities.Metadata{"host": "x"}}, event))
}

func TestCriteriaFor(t *testing.T) {
	rule := &entities.Rule{
		Source:      "sshd",
		SeverityMin: intPtr(4),
		Contains:    "failed",
		MetaMatch:   entities.Metadata{"user": "root"},
	}
	crit := criteriaFor(rule)
	assert.Equal(t, "sshd", crit.Source)
	assert.Equal(t, 4, *crit.SeverityMin)
	assert.Equal(t, "failed", crit.Contains)
	assert.Equal(t, entities.Metadata{"user": "root"}, crit.MetaMatch)
}
