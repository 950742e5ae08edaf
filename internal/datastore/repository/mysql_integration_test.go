//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/testutil/containers"
)

var (
	mysqlContainer *containers.MySQLContainer
	mysqlDB        *gorm.DB
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
	if err != nil {
		panic("failed to start MySQL container: " + err.Error())
	}

	mysqlDB, err = gorm.Open(mysql.Open(mysqlContainer.GetDSN()), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		panic("failed to open MySQL: " + err.Error())
	}
	if err := mysqlDB.AutoMigrate(&entities.Event{}, &entities.Rule{}, &entities.Alert{}); err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		panic("failed to migrate schema: " + err.Error())
	}

	code := m.Run()
	_ = mysqlContainer.Terminate(context.Background())
	os.Exit(code)
}

func strPtr(v string) *string { return &v }

func setupMySQLStores(t *testing.T) repository.Stores {
	t.Helper()
	require.NoError(t, mysqlContainer.Reset(t.Context(), []string{"events", "rules", "alerts"}))
	return repository.NewStores(mysqlDB, true)
}

// CountMatching uses JSON_UNQUOTE(JSON_EXTRACT(...)) on MySQL; this
// verifies the dialect-specific SQL against a real server.
func TestCountMatchingMySQL(t *testing.T) {
	stores := setupMySQLStores(t)
	base := time.Now().UTC().Truncate(time.Second)

	events := []entities.Event{
		{Timestamp: base, Source: "sshd", Severity: 5, Message: "login failed", Meta: entities.Metadata{"host": "web-1"}},
		{Timestamp: base, Source: "sshd", Severity: 5, Message: "login failed", Meta: entities.Metadata{"host": "web-1", "user": "root"}},
		{Timestamp: base, Source: "sshd", Severity: 5, Message: "login failed", Meta: entities.Metadata{"host": "db-1"}},
		{Timestamp: base, Source: "sshd", Severity: 5, Message: "login failed"},
	}
	for i := range events {
		require.NoError(t, stores.Events.Create(t.Context(), &events[i]))
	}

	crit := repository.EventCriteria{Source: "sshd", Contains: "failed"}
	count, err := stores.Events.CountMatching(t.Context(), crit, "host", "web-1", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	crit.MetaMatch = entities.Metadata{"user": "root"}
	count, err = stores.Events.CountMatching(t.Context(), crit, "host", "web-1", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMetaFilterMySQL(t *testing.T) {
	stores := setupMySQLStores(t)
	base := time.Now().UTC().Truncate(time.Second)

	e1 := entities.Event{Timestamp: base, Source: "app", Severity: 1, Message: "a", Meta: entities.Metadata{"host": "web-1"}}
	e2 := entities.Event{Timestamp: base, Source: "app", Severity: 1, Message: "b"}
	require.NoError(t, stores.Events.Create(t.Context(), &e1))
	require.NoError(t, stores.Events.Create(t.Context(), &e2))

	events, err := stores.Events.List(t.Context(), repository.EventFilter{MetaKey: "host", MetaValue: "web-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Message)

	events, err = stores.Events.List(t.Context(), repository.EventFilter{MetaKey: "host"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMostRecentActiveMySQL(t *testing.T) {
	stores := setupMySQLStores(t)
	base := time.Now().UTC().Truncate(time.Second)

	event := entities.Event{Timestamp: base, Source: "app", Severity: 1, Message: "x"}
	require.NoError(t, stores.Events.Create(t.Context(), &event))

	for _, a := range []entities.Alert{
		{RuleID: 1, EventID: event.ID, Title: "t", GroupKey: strPtr("web-1"), Status: entities.StatusClosed, CreatedAt: base.Add(-2 * time.Minute)},
		{RuleID: 1, EventID: event.ID, Title: "t", GroupKey: strPtr("web-1"), Status: entities.StatusOpen, CreatedAt: base.Add(-1 * time.Minute)},
		{RuleID: 1, EventID: event.ID, Title: "t", Status: entities.StatusOpen, CreatedAt: base},
	} {
		alert := a
		require.NoError(t, stores.Alerts.Create(t.Context(), &alert))
	}

	active, err := stores.Alerts.MostRecentActive(t.Context(), 1, "web-1")
	require.NoError(t, err)
	require.NotNil(t, active)

	active, err = stores.Alerts.MostRecentActive(t.Context(), 1, "db-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	// The ungrouped alert stores NULL and matches no group lookup.
	active, err = stores.Alerts.MostRecentActive(t.Context(), 1, "")
	require.NoError(t, err)
	assert.Nil(t, active)
}
