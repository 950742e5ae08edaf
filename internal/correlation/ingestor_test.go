package correlation

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/errors"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

var testDBCounter int

// setupTestDB opens a unique in-memory SQLite database with the full
// schema. Shared cache plus a single connection keeps the database alive
// and serializes access for the test's lifetime.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:ingest_test_%d_%d?mode=memory&cache=shared", testDBCounter, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&entities.Event{}, &entities.Rule{}, &entities.Alert{}))
	return db
}

func setupIngestor(t *testing.T, db *gorm.DB, bus *AlertBus) (*Ingestor, repository.Stores) {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	stores := repository.NewStores(db, false)
	engine := NewEngine("host", 60*time.Second, log)
	tx := repository.NewTxRunner(db, false)
	return NewIngestor(tx, engine, bus, log, nil), stores
}

func TestIngestEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	require.NoError(t, stores.Rules.Create(t.Context(), &entities.Rule{
		Name: "ssh failures", Enabled: true, Source: "sshd", Contains: "failed",
	}))

	alerts, err := ingestor.Ingest(t.Context(), &entities.Event{
		Source: "sshd", Severity: 5, Message: "login failed",
		Meta: entities.Metadata{"host": "web-1"},
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Rule matched: ssh failures", alerts[0].Title)
	require.NotNil(t, alerts[0].GroupKey)
	assert.Equal(t, "web-1", *alerts[0].GroupKey)

	// Both the event and the alert are persisted.
	eventCount, err := stores.Events.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), eventCount)
	alertCount, err := stores.Alerts.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), alertCount)
}

func TestIngestStampsZeroTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	before := time.Now().UTC()
	event := &entities.Event{Source: "app", Severity: 1, Message: "hi"}
	_, err := ingestor.Ingest(t.Context(), event)
	require.NoError(t, err)

	stored, err := stores.Events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.False(t, stored.Timestamp.Before(before))
	assert.False(t, stored.Timestamp.After(time.Now().UTC()))
}

func TestIngestKeepsProvidedTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := &entities.Event{Timestamp: ts, Source: "app", Severity: 1, Message: "hi"}
	_, err := ingestor.Ingest(t.Context(), event)
	require.NoError(t, err)

	stored, err := stores.Events.Get(t.Context(), event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Timestamp.Equal(ts))
}

func TestIngestThrottlesSecondEvent(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	require.NoError(t, stores.Rules.Create(t.Context(), &entities.Rule{
		Name: "any", Enabled: true,
	}))

	event := func() *entities.Event {
		return &entities.Event{
			Source: "app", Severity: 5, Message: "boom",
			Meta: entities.Metadata{"host": "web-1"},
		}
	}

	alerts, err := ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	// Second event immediately after is throttled; both events persist.
	alerts, err = ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	assert.Empty(t, alerts)

	eventCount, err := stores.Events.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), eventCount)
	alertCount, err := stores.Alerts.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), alertCount)
}

func TestIngestThresholdAgainstStore(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	count, seconds := 3, 60
	require.NoError(t, stores.Rules.Create(t.Context(), &entities.Rule{
		Name: "burst", Enabled: true, Contains: "failed",
		ThresholdCount: &count, ThresholdSeconds: &seconds,
	}))

	event := func() *entities.Event {
		return &entities.Event{
			Source: "sshd", Severity: 4, Message: "login failed",
			Meta: entities.Metadata{"host": "web-1"},
		}
	}

	for i := 0; i < 2; i++ {
		alerts, err := ingestor.Ingest(t.Context(), event())
		require.NoError(t, err)
		assert.Empty(t, alerts, "event %d should stay below threshold", i+1)
	}

	alerts, err := ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestIngestReAlertAfterClose(t *testing.T) {
	db := setupTestDB(t)
	ingestor, stores := setupIngestor(t, db, nil)

	zero := 0
	require.NoError(t, stores.Rules.Create(t.Context(), &entities.Rule{
		Name: "any", Enabled: true, ThrottleSeconds: &zero,
	}))

	event := func() *entities.Event {
		return &entities.Event{
			Source: "app", Severity: 5, Message: "boom",
			Meta: entities.Metadata{"host": "web-1"},
		}
	}

	alerts, err := ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	firstID := alerts[0].ID

	// Active alert dedups even with throttling disabled.
	alerts, err = ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// Closing the alert frees the rule/group pair.
	_, err = stores.Alerts.UpdateStatus(t.Context(), firstID, entities.StatusClosed)
	require.NoError(t, err)

	alerts, err = ingestor.Ingest(t.Context(), event())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestIngestPublishesAfterCommit(t *testing.T) {
	db := setupTestDB(t)
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	bus := NewAlertBus(8, log)
	ingestor, stores := setupIngestor(t, db, bus)

	require.NoError(t, stores.Rules.Create(t.Context(), &entities.Rule{
		Name: "any", Enabled: true,
	}))

	received := make(chan *entities.Alert, 1)
	bus.Subscribe(func(alert *entities.Alert) { received <- alert })

	alerts, err := ingestor.Ingest(t.Context(), &entities.Event{
		Source: "app", Severity: 5, Message: "boom",
		Meta: entities.Metadata{"host": "web-1"},
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	bus.Stop()

	select {
	case alert := <-received:
		assert.Equal(t, alerts[0].ID, alert.ID)
	default:
		t.Fatal("alert was not published to the bus")
	}
}

func TestTransactionRollsBackEverything(t *testing.T) {
	db := setupTestDB(t)
	tx := repository.NewTxRunner(db, false)

	sentinel := errors.New("evaluation exploded")
	err := tx.InTransaction(t.Context(), func(stores repository.Stores) error {
		if err := stores.Events.Create(t.Context(), &entities.Event{
			Timestamp: time.Now(), Source: "app", Severity: 1, Message: "hi",
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&entities.Event{}).Count(&count).Error)
	assert.Zero(t, count, "rolled-back event must not persist")
}
