package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "main:\n  name: sentinel\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sentinel", s.Main.Name)
	assert.Equal(t, "info", s.Main.LogLevel)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, DatabaseSQLite, s.Database.Type)
	assert.Equal(t, "sentinel.db", s.Database.Path)
	assert.Equal(t, "host", s.Correlation.GroupAttribute)
	assert.Equal(t, 60*time.Second, s.Correlation.DefaultThrottle.Std())
	assert.False(t, s.MQTT.Enabled)
	assert.Equal(t, "sentinel/events", s.MQTT.Topic)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
main:
  name: siem-edge
  loglevel: debug
server:
  host: 127.0.0.1
  port: 9090
  ingestratelimit: 100
database:
  type: sqlite
  path: /var/lib/sentinel/events.db
correlation:
  groupattribute: hostname
  defaultthrottle: 5m
mqtt:
  enabled: true
  broker: tcp://broker:1883
  topic: edge/events
notification:
  webhookurl: https://hooks.example.com/alerts
  pushurls:
    - ntfy://ntfy.example.com/alerts
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "siem-edge", s.Main.Name)
	assert.Equal(t, "127.0.0.1:9090", s.Server.Addr())
	assert.Equal(t, 100.0, s.Server.IngestRateLimit)
	assert.Equal(t, "/var/lib/sentinel/events.db", s.Database.Path)
	assert.Equal(t, "hostname", s.Correlation.GroupAttribute)
	assert.Equal(t, 5*time.Minute, s.Correlation.DefaultThrottle.Std())
	assert.True(t, s.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", s.MQTT.Broker)
	assert.Equal(t, "https://hooks.example.com/alerts", s.Notification.WebhookURL)
	assert.Equal(t, []string{"ntfy://ntfy.example.com/alerts"}, s.Notification.PushURLs)
}

func TestLoadSetsGlobal(t *testing.T) {
	path := writeConfig(t, "main:\n  name: global-check\n")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Same(t, s, GetSettings())
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Database:    DatabaseSettings{Type: DatabaseSQLite, Path: "x.db"},
			Correlation: CorrelationSettings{GroupAttribute: "host"},
		}
	}

	assert.NoError(t, valid().Validate())

	s := valid()
	s.Database.Type = "postgres"
	assert.Error(t, s.Validate())

	s = valid()
	s.Database.Path = ""
	assert.Error(t, s.Validate())

	s = valid()
	s.Database.Type = DatabaseMySQL
	assert.Error(t, s.Validate(), "mysql requires a DSN")
	s.Database.DSN = "user:pass@tcp(localhost:3306)/sentinel"
	assert.NoError(t, s.Validate())

	s = valid()
	s.Correlation.GroupAttribute = ""
	assert.Error(t, s.Validate())

	s = valid()
	s.MQTT.Enabled = true
	assert.Error(t, s.Validate(), "enabled mqtt requires a broker")
	s.MQTT.Broker = "tcp://localhost:1883"
	assert.NoError(t, s.Validate())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "database:\n  type: oracle\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
