package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/logger"
	"github.com/tkarvo/sentinel-go/internal/observability/metrics"
)

// Engine evaluates enabled rules against a single event. It is stateless
// between calls: all suppression state lives in the alert store, so the
// engine works correctly inside a transaction and across restarts.
type Engine struct {
	groupAttr       string
	defaultThrottle time.Duration
	clock           func() time.Time
	log             logger.Logger
	metrics         *metrics.CorrelationMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.CorrelationMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine grouping on groupAttr and falling back to
// defaultThrottle for rules that leave throttle_seconds unset.
func NewEngine(groupAttr string, defaultThrottle time.Duration, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		groupAttr:       groupAttr,
		defaultThrottle: defaultThrottle,
		clock:           time.Now,
		log:             log.With(logger.String("component", "correlation")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GroupKey extracts the grouping attribute from the event's metadata.
// The second return is false when the attribute is absent; suppression
// checks are skipped entirely in that case.
func (e *Engine) GroupKey(event *entities.Event) (string, bool) {
	if event.Meta == nil {
		return "", false
	}
	key, ok := event.Meta[e.groupAttr]
	return key, ok
}

// Evaluate runs every enabled rule against the event, in ascending rule ID
// order, and returns the alerts it created. The event must already be
// persisted in the same transaction: threshold counting includes it.
//
// Per rule the pipeline is match, throttle, dedup, threshold. A rule that
// fails any stage contributes no alert but never stops later rules.
func (e *Engine) Evaluate(ctx context.Context, stores repository.Stores, event *entities.Event) ([]*entities.Alert, error) {
	rules, err := stores.Rules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled rules: %w", err)
	}

	groupKey, grouped := e.GroupKey(event)

	var created []*entities.Alert
	for i := range rules {
		rule := &rules[i]
		if e.metrics != nil {
			e.metrics.RulesEvaluated.Inc()
		}
		if !RuleMatches(rule, event) {
			continue
		}

		alert, err := e.evaluateRule(ctx, stores, rule, event, groupKey, grouped)
		if err != nil {
			return nil, fmt.Errorf("rule %d %q: %w", rule.ID, rule.Name, err)
		}
		if alert != nil {
			created = append(created, alert)
		}
	}
	return created, nil
}

// evaluateRule applies the suppression pipeline for one matched rule and
// creates the alert if nothing suppresses it.
func (e *Engine) evaluateRule(ctx context.Context, stores repository.Stores, rule *entities.Rule, event *entities.Event, groupKey string, grouped bool) (*entities.Alert, error) {
	// An event without the grouping attribute has no suppression scope:
	// throttle, dedup, and threshold are all skipped and a match always
	// alerts.
	if grouped {
		active, err := stores.Alerts.MostRecentActive(ctx, rule.ID, groupKey)
		if err != nil {
			return nil, err
		}
		if active != nil {
			window := e.throttleWindow(rule)
			if window > 0 && e.clock().Sub(active.CreatedAt) < window {
				e.suppress(rule, groupKey, metrics.ReasonThrottle)
				return nil, nil
			}
			// Outside the throttle window an open or ack alert still
			// dedups; it must be closed before the pair can alert again.
			e.suppress(rule, groupKey, metrics.ReasonDedup)
			return nil, nil
		}

		if rule.HasThreshold() {
			since := e.clock().Add(-time.Duration(*rule.ThresholdSeconds) * time.Second)
			count, err := stores.Events.CountMatching(ctx, criteriaFor(rule), e.groupAttr, groupKey, since)
			if err != nil {
				return nil, err
			}
			if count < int64(*rule.ThresholdCount) {
				e.suppress(rule, groupKey, metrics.ReasonThreshold)
				return nil, nil
			}
		}
	}

	alert := &entities.Alert{
		RuleID:  rule.ID,
		EventID: event.ID,
		Title:   "Rule matched: " + rule.Name,
		Status:  entities.StatusOpen,
	}
	// Ungrouped alerts store NULL, never "": a present-but-empty group key
	// is its own suppression scope and must not be conflated with no group.
	if grouped {
		alert.GroupKey = &groupKey
	}
	if err := stores.Alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.AlertsCreated.Inc()
	}
	e.log.Info("alert created",
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.Uint64("event_id", uint64(event.ID)),
		logger.String("group_key", groupKey))
	return alert, nil
}

// throttleWindow resolves a rule's effective throttle. Unset falls back to
// the system default; an explicit zero disables throttling.
func (e *Engine) throttleWindow(rule *entities.Rule) time.Duration {
	if rule.ThrottleSeconds == nil {
		return e.defaultThrottle
	}
	return time.Duration(*rule.ThrottleSeconds) * time.Second
}

func (e *Engine) suppress(rule *entities.Rule, groupKey, reason string) {
	e.metrics.RecordSuppression(reason)
	e.log.Debug("alert suppressed",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("group_key", groupKey),
		logger.String("reason", reason))
}
