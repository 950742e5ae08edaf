//go:build integration

package notification_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/notification"
	"github.com/tkarvo/sentinel-go/internal/testutil/containers"
)

var ntfyServer *containers.NtfyContainer

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	ntfyServer, err = containers.NewNtfyContainer(ctx)
	if err != nil {
		panic("failed to start ntfy server: " + err.Error())
	}

	code := m.Run()
	_ = ntfyServer.Terminate(context.Background())
	os.Exit(code)
}

func uniqueTopic(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// ntfyURL builds a shoutrrr ntfy URL for an HTTP-only test server.
func ntfyURL(topic string) string {
	return fmt.Sprintf("ntfy://%s/%s?scheme=http", ntfyServer.GetHost(), topic)
}

func TestPushDelivery(t *testing.T) {
	topic := uniqueTopic("alerts")

	notifier, err := notification.NewPushNotifier([]string{ntfyURL(topic)})
	require.NoError(t, err)

	group := "web-1"
	alert := &entities.Alert{
		ID: 1, RuleID: 1, EventID: 1,
		Title: "Rule matched: ssh failures", GroupKey: &group,
		Status: entities.StatusOpen, CreatedAt: time.Now(),
	}
	require.NoError(t, notifier.Notify(t.Context(), alert))

	messages, err := ntfyServer.PollMessages(t.Context(), topic)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Rule matched: ssh failures", messages[0].Title)
	assert.Contains(t, messages[0].Message, "web-1")
}

func TestPushDeliveryWithoutGroup(t *testing.T) {
	topic := uniqueTopic("nogroup")

	notifier, err := notification.NewPushNotifier([]string{ntfyURL(topic)})
	require.NoError(t, err)

	alert := &entities.Alert{
		ID: 2, RuleID: 1, EventID: 2,
		Title: "Rule matched: any", Status: entities.StatusOpen, CreatedAt: time.Now(),
	}
	require.NoError(t, notifier.Notify(t.Context(), alert))

	messages, err := ntfyServer.PollMessages(t.Context(), topic)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Rule matched: any", messages[0].Message)
}
