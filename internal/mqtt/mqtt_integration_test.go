//go:build integration

package mqtt_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/sentinel-go/internal/conf"
	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/logger"
	"github.com/tkarvo/sentinel-go/internal/mqtt"
	"github.com/tkarvo/sentinel-go/internal/testutil/containers"
)

var broker *containers.MosquittoContainer

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	broker, err = containers.NewMosquittoContainer(ctx)
	if err != nil {
		panic("failed to start Mosquitto broker: " + err.Error())
	}

	code := m.Run()
	_ = broker.Terminate(context.Background())
	os.Exit(code)
}

// recordingSink captures ingested events.
type recordingSink struct {
	mu     sync.Mutex
	events []*entities.Event
}

func (s *recordingSink) Ingest(_ context.Context, event *entities.Event) ([]*entities.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil, nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) last() *entities.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

func setupClient(t *testing.T, topic string) (*mqtt.Client, *recordingSink) {
	t.Helper()

	settings := conf.MQTTSettings{
		Enabled:  true,
		Broker:   broker.GetBrokerURL(t),
		Topic:    topic,
		ClientID: fmt.Sprintf("sentinel-test-%s", t.Name()),
	}

	sink := &recordingSink{}
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	client := mqtt.NewClient(settings, sink, log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(client.Disconnect)

	return client, sink
}

func publish(t *testing.T, topic, payload string) {
	t.Helper()
	pub, err := broker.CreateClient(fmt.Sprintf("publisher-%s", t.Name()))
	require.NoError(t, err)
	defer pub.Disconnect(250)

	token := pub.Publish(topic, 1, false, payload)
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())
}

func TestIngestFromBroker(t *testing.T) {
	topic := "sentinel/test/ingest"
	_, sink := setupClient(t, topic)

	publish(t, topic, `{"source":"sshd","severity":5,"message":"login failed","meta":{"host":"web-1"}}`)

	require.Eventually(t, func() bool { return sink.count() == 1 },
		10*time.Second, 100*time.Millisecond, "event never reached the sink")

	event := sink.last()
	assert.Equal(t, "sshd", event.Source)
	assert.Equal(t, 5, event.Severity)
	assert.Equal(t, "login failed", event.Message)
	assert.Equal(t, entities.Metadata{"host": "web-1"}, event.Meta)
}

func TestMalformedPayloadDropped(t *testing.T) {
	topic := "sentinel/test/malformed"
	_, sink := setupClient(t, topic)

	publish(t, topic, `not json at all`)
	publish(t, topic, `{"source":"","severity":1,"message":"x"}`)
	publish(t, topic, `{"source":"app","severity":2,"message":"valid"}`)

	// Only the valid message makes it through.
	require.Eventually(t, func() bool { return sink.count() == 1 },
		10*time.Second, 100*time.Millisecond)
	assert.Equal(t, "valid", sink.last().Message)
}
