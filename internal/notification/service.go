// Package notification delivers created alerts to external channels:
// a JSON webhook and any number of shoutrrr push URLs.
package notification

import (
	"context"
	"time"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

const defaultDeliveryTimeout = 30 * time.Second

// Notifier delivers one alert to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert *entities.Alert) error
}

// Service fans alerts out to all configured notifiers. Delivery is
// best-effort: a failing channel is logged and never blocks the others,
// and nothing is retried.
type Service struct {
	notifiers []Notifier
	timeout   time.Duration
	log       logger.Logger
}

// NewService creates a delivery service over the given notifiers.
func NewService(log logger.Logger, notifiers ...Notifier) *Service {
	return &Service{
		notifiers: notifiers,
		timeout:   defaultDeliveryTimeout,
		log:       log.With(logger.String("component", "notification")),
	}
}

// Enabled reports whether any channel is configured.
func (s *Service) Enabled() bool {
	return len(s.notifiers) > 0
}

// Deliver sends the alert to every channel.
func (s *Service) Deliver(alert *entities.Alert) {
	for _, n := range s.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := n.Notify(ctx, alert)
		cancel()
		if err != nil {
			s.log.Error("alert delivery failed",
				logger.String("channel", n.Name()),
				logger.Uint64("alert_id", uint64(alert.ID)),
				logger.Error(err))
			continue
		}
		s.log.Debug("alert delivered",
			logger.String("channel", n.Name()),
			logger.Uint64("alert_id", uint64(alert.ID)))
	}
}

// Handler adapts the service to an alert bus subscription.
func (s *Service) Handler() func(alert *entities.Alert) {
	return s.Deliver
}
