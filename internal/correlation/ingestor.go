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

// Ingestor persists an event and evaluates it in one transaction. The
// event insert and any alert inserts commit or roll back together, so the
// store never holds an evaluated event without its alerts or vice versa.
type Ingestor struct {
	tx      repository.TxRunner
	engine  *Engine
	bus     *AlertBus
	log     logger.Logger
	metrics *metrics.CorrelationMetrics
	clock   func() time.Time
}

// NewIngestor wires the transaction runner, engine, and optional alert
// bus into an ingest pipeline.
func NewIngestor(tx repository.TxRunner, engine *Engine, bus *AlertBus, log logger.Logger, m *metrics.CorrelationMetrics) *Ingestor {
	return &Ingestor{
		tx:      tx,
		engine:  engine,
		bus:     bus,
		log:     log.With(logger.String("component", "ingest")),
		metrics: m,
		clock:   time.Now,
	}
}

// Ingest stores the event, runs correlation, and returns the alerts that
// were created. A zero timestamp is stamped with the current UTC time.
// On error nothing is persisted.
func (i *Ingestor) Ingest(ctx context.Context, event *entities.Event) ([]*entities.Alert, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = i.clock().UTC()
	}

	var alerts []*entities.Alert
	err := i.tx.InTransaction(ctx, func(stores repository.Stores) error {
		if err := stores.Events.Create(ctx, event); err != nil {
			return err
		}
		created, err := i.engine.Evaluate(ctx, stores, event)
		if err != nil {
			return err
		}
		alerts = created
		return nil
	})
	if err != nil {
		if i.metrics != nil {
			i.metrics.IngestFailures.Inc()
		}
		return nil, fmt.Errorf("failed to ingest event: %w", err)
	}

	if i.metrics != nil {
		i.metrics.EventsIngested.Inc()
	}
	i.log.Debug("event ingested",
		logger.Uint64("event_id", uint64(event.ID)),
		logger.String("source", event.Source),
		logger.Int("alerts", len(alerts)))

	// Notifications happen only after commit; a rolled-back alert must
	// never reach a subscriber.
	if i.bus != nil {
		for _, alert := range alerts {
			i.bus.Publish(alert)
		}
	}
	return alerts, nil
}
